package browser

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestwatch/internal/domain"
)

func TestOpener_OpenContest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var opened []string
	o := NewOpener(logger)
	o.open = func(u string) { opened = append(opened, u) }

	require.NoError(t, o.OpenContest(domain.Contest{ID: "cf-2051", Link: "https://codeforces.com/contest/2051"}))
	assert.Equal(t, []string{"https://codeforces.com/contest/2051"}, opened)

	tests := []struct {
		name string
		link string
	}{
		{"file scheme", "file:///etc/passwd"},
		{"relative", "/contest/2051"},
		{"empty", ""},
		{"javascript", "javascript:alert(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, o.OpenContest(domain.Contest{ID: "x", Link: tt.link}))
		})
	}
	assert.Len(t, opened, 1)
}
