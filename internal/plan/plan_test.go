package plan

import (
	"errors"
	"testing"

	"github.com/lazycook/chat-platform/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestAuthorize_OnlyMappedModelAllowed(t *testing.T) {
	table := map[Plan]Model{Go: Gemini, Pro: Grok, Ultra: Mixed}

	for _, p := range Plans() {
		for _, m := range Models() {
			d := Authorize(p, m)
			want := table[p] == m
			require.Equalf(t, want, d.Allowed, "Authorize(%s, %s)", p, m)
			if want {
				require.NoError(t, d.Err())
				require.Empty(t, d.Reason)
				continue
			}
			require.NotEmpty(t, d.Reason)
			require.True(t, apperr.Is(d.Err(), apperr.KindPlanDenied))
		}
	}
}

func TestAuthorize_Examples(t *testing.T) {
	require.True(t, Authorize(Go, Gemini).Allowed)
	require.False(t, Authorize(Go, Grok).Allowed)
	require.True(t, Authorize(Pro, Grok).Allowed)

	d := Authorize(Go, Mixed)
	require.Equal(t, Ultra, d.Required)
	require.Contains(t, d.Reason, "ULTRA")
	require.Contains(t, d.Reason, "upgrade")
}

func TestAuthorize_UnknownValuesDenied(t *testing.T) {
	d := Authorize(Plan("FREE"), Gemini)
	require.False(t, d.Allowed)
	require.Empty(t, d.Required)

	d = Authorize(Go, Model("gpt"))
	require.False(t, d.Allowed)
	require.Empty(t, d.Required)
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan("  ultra ")
	require.NoError(t, err)
	require.Equal(t, Ultra, p)

	_, err = ParsePlan("enterprise")
	require.True(t, errors.Is(err, ErrUnknownPlan))
}

func TestParseModel_Aliases(t *testing.T) {
	cases := map[string]Model{
		"gemini":     Gemini,
		" GROK ":     Grok,
		"Mixed":      Mixed,
		"ai_type_1":  Gemini,
		"AI_TYPE_2":  Grok,
		"ai_type_3 ": Mixed,
	}
	for in, want := range cases {
		got, err := ParseModel(in)
		require.NoErrorf(t, err, "ParseModel(%q)", in)
		require.Equal(t, want, got)
	}

	_, err := ParseModel("claude")
	require.True(t, errors.Is(err, ErrUnknownModel))
}

func TestModelForAndRequiredPlanAgree(t *testing.T) {
	for _, p := range Plans() {
		m, err := ModelFor(p)
		require.NoError(t, err)
		back, err := RequiredPlan(m)
		require.NoError(t, err)
		require.Equal(t, p, back)
	}
	_, err := ModelFor(Plan(""))
	require.Error(t, err)
}
