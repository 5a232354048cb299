package service_test

import (
	"testing"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

func TestRenderForRecipient(t *testing.T) {
	r := model.Recipient{
		Name:         "Omar",
		Organization: "Gulf Traders",
		Attributes:   map[string]string{"city": "Sharjah", "name": "ignored"},
	}
	cases := []struct {
		body, want string
	}{
		{"Hi {name}", "Hi Omar"},
		{"Dear {Name} / {User}", "Dear Omar / Omar"},
		{"{businessName}, {Business}, {organization}", "Gulf Traders, Gulf Traders, Gulf Traders"},
		{"See you in {city}", "See you in Sharjah"},
		{"Keep {unknown} and {not closed", "Keep {unknown} and {not closed"},
	}
	for _, tc := range cases {
		if got := service.RenderForRecipient(tc.body, r); got != tc.want {
			t.Errorf("render %q = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestRenderFallbacks(t *testing.T) {
	got := service.RenderForRecipient("Hi {name} at {businessName}", model.Recipient{})
	if got != "Hi User at Business" {
		t.Errorf("unexpected fallback rendering %q", got)
	}
}

func TestRenderTemplateDoesNotRescan(t *testing.T) {
	got := service.RenderTemplate("{a}", map[string]string{"a": "{b}", "b": "x"})
	if got != "{b}" {
		t.Errorf("substituted values must not be rendered again, got %q", got)
	}
}
