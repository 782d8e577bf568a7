package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillboardValidate(t *testing.T) {
	valid := NewTestBillboard(1, AreaSidebarLeft)
	valid.Tags = []string{" Go ", "go", "JavaScript"}
	require.NoError(t, valid.Validate())
	assert.Equal(t, []string{"go", "javascript"}, valid.Tags)

	tests := []struct {
		name   string
		mutate func(*Billboard)
	}{
		{"unknown area", func(b *Billboard) { b.PlacementArea = "nowhere" }},
		{"unknown display_to", func(b *Billboard) { b.DisplayTo = "friends" }},
		{"unknown type", func(b *Billboard) { b.TypeOf = "paid" }},
		{"unknown browser context", func(b *Billboard) { b.BrowserContext = "tv" }},
		{"unknown is not storable", func(b *Billboard) { b.BrowserContext = BrowserUnknown }},
		{"external home hero", func(b *Billboard) { b.PlacementArea = AreaHomeHero; b.TypeOf = TypeExternal }},
		{"community without organization", func(b *Billboard) { b.TypeOf = TypeCommunity }},
		{"bad geolocation", func(b *Billboard) { b.TargetGeolocations = []Geolocation{{Country: "USA"}} }},
		{"too many tags", func(b *Billboard) {
			for i := 0; i <= MaxTagListSize; i++ {
				b.Tags = append(b.Tags, string(rune('a'+i)))
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewTestBillboard(1, AreaSidebarLeft)
			tt.mutate(&b)
			err := b.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidBillboard)
		})
	}
}

func TestBillboardValidateReportsEveryProblem(t *testing.T) {
	b := NewTestBillboard(1, "nowhere")
	b.TypeOf = TypeCommunity
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placement area")
	assert.Contains(t, err.Error(), "organization")
}

func TestCommunityBillboardWithOrganization(t *testing.T) {
	b := NewTestBillboard(1, AreaPostSidebar)
	b.TypeOf = TypeCommunity
	b.OrganizationID = IntPtr(9)
	require.NoError(t, b.Validate())
	assert.True(t, b.IsCommunityFor(9))
	assert.False(t, b.IsCommunityFor(10))
}

func TestNormalizeTags(t *testing.T) {
	assert.Nil(t, NormalizeTags(nil))
	assert.Equal(t, []string{"ruby", "go"}, NormalizeTags([]string{"Ruby", "", "  ", "GO", "ruby"}))
}

func TestParseGeolocation(t *testing.T) {
	tests := []struct {
		code    string
		want    Geolocation
		wantErr bool
	}{
		{code: "US", want: Geolocation{Country: "US"}},
		{code: " ca-on ", want: Geolocation{Country: "CA", Region: "ON"}},
		{code: "FR-BRE", want: Geolocation{Country: "FR", Region: "BRE"}},
		{code: "GB-01", want: Geolocation{Country: "GB", Region: "01"}},
		{code: "", wantErr: true},
		{code: "USA", wantErr: true},
		{code: "CA-", wantErr: true},
		{code: "CA-ABCD", wantErr: true},
		{code: "C1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseGeolocation(tt.code)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidGeolocation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGeolocations(t *testing.T) {
	got, err := ParseGeolocations("US-CA, CA-ON,,FR")
	require.NoError(t, err)
	assert.Equal(t, []string{"US-CA", "CA-ON", "FR"}, []string{got[0].String(), got[1].String(), got[2].String()})

	got, err = ParseGeolocations("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseGeolocations("US, XYZ, CA-QQQQ")
	assert.ErrorIs(t, err, ErrInvalidGeolocation)
	assert.Len(t, got, 1)
}

func TestGeolocationText(t *testing.T) {
	g := Geolocation{Country: "CA", Region: "NL"}
	text, err := g.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CA-NL", string(text))

	var back Geolocation
	require.NoError(t, back.UnmarshalText([]byte("ca-nl")))
	assert.Equal(t, g, back)
	assert.True(t, back.HasRegion())
	assert.Error(t, back.UnmarshalText([]byte("nope")))
}
