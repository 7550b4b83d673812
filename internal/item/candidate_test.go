package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashFromMagnet(t *testing.T) {
	tests := []struct {
		name   string
		magnet string
		want   string
	}{
		{"plain", "magnet:?xt=urn:btih:ABCDEF0123&dn=Movie", "abcdef0123"},
		{"tracker first", "magnet:?tr=udp://x&xt=urn:btih:abc", "abc"},
		{"no btih", "magnet:?xt=urn:sha1:abc", ""},
		{"base32", "magnet:?xt=urn:btih:YEX6DQDLXISUVHOJ6UM3GNNKPQJWPKEK&dn=Movie", "c12fe1c06bba254a9dc9f519b335aa7c1367a88a"},
		{"base32 lower case", "magnet:?xt=URN:BTIH:yex6dqdlxisuvhoj6um3gnnkpqjwpkek", "c12fe1c06bba254a9dc9f519b335aa7c1367a88a"},
		{"not magnet", "https://example.com/file.torrent", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashFromMagnet(tt.magnet))
		})
	}
}

func TestCandidate_LinkAndHash(t *testing.T) {
	c := Candidate{Magnet: "magnet:?xt=urn:btih:ABC", URL: "https://x/t.torrent"}
	assert.Equal(t, c.Magnet, c.Link())
	assert.Equal(t, "abc", c.InfoHash())

	c = Candidate{URL: "https://x/t.torrent", Hash: "DEF"}
	assert.Equal(t, "https://x/t.torrent", c.Link())
	assert.Equal(t, "def", c.InfoHash())
}

func TestNormalizeHash(t *testing.T) {
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", NormalizeHash("C12FE1C06BBA254A9DC9F519B335AA7C1367A88A"))
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", NormalizeHash("YEX6DQDLXISUVHOJ6UM3GNNKPQJWPKEK"))
	assert.Equal(t, "abc", NormalizeHash(" ABC "))

	c := Candidate{URL: "https://x/t.torrent", Hash: "YEX6DQDLXISUVHOJ6UM3GNNKPQJWPKEK"}
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", c.InfoHash())
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, IsHTTP("https://x"))
	assert.True(t, IsHTTP("http://x"))
	assert.False(t, IsHTTP("magnet:?xt=urn:btih:abc"))
}
