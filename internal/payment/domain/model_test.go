package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTrip(t *testing.T) {
	for _, credits := range []int64{1, 999, 1000, 5000, 100000, MaxCredits} {
		metadata := Metadata(credits, "user_123")
		assert.Len(t, metadata, 2)

		gotCredits, gotUser, err := ParseMetadata(metadata)
		require.NoError(t, err)
		assert.Equal(t, credits, gotCredits)
		assert.Equal(t, "user_123", gotUser)
	}
}

func TestParseMetadataRejectsIncomplete(t *testing.T) {
	cases := []map[string]string{
		nil,
		{MetadataCredits: "100"},
		{MetadataUserID: "user_1"},
		{MetadataCredits: " ", MetadataUserID: "user_1"},
		{MetadataCredits: "abc", MetadataUserID: "user_1"},
		{MetadataCredits: "-5", MetadataUserID: "user_1"},
		{MetadataCredits: "0", MetadataUserID: "user_1"},
		{MetadataCredits: "10.5", MetadataUserID: "user_1"},
		{MetadataCredits: "1000000001", MetadataUserID: "user_1"},
		{MetadataCredits: "9223372036854775807", MetadataUserID: "user_1"},
	}
	for _, metadata := range cases {
		_, _, err := ParseMetadata(metadata)
		assert.ErrorIs(t, err, ErrIncompleteMetadata, "%v", metadata)
	}
}
