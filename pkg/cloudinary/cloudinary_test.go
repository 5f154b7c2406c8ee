package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicIDSanitisesAndKeepsExtension(t *testing.T) {
	at := time.Unix(0, 42)

	require.Equal(t, "Lab-Report--final-42.docx", buildPublicID("Lab Report (final).DOCX", at))
	require.Equal(t, "submission-42.pdf", buildPublicID("../???.pdf", at))
	require.Equal(t, "notes-42", buildPublicID("notes", at))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
	require.False(t, Config{CloudName: "demo", APIKey: "key"}.Enabled())
	require.True(t, Config{CloudName: "demo", APIKey: "key", APISecret: "secret"}.Enabled())
}
