package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPageParams(t *testing.T) {
	tests := []struct {
		query string
		want  PageParams
	}{
		{"", PageParams{}},
		{"limit=10&cursor=abc", PageParams{Limit: 10, Cursor: "abc"}},
		{"limit=500", PageParams{Limit: 100}},
		{"limit=-3", PageParams{}},
		{"limit=ten", PageParams{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/cases?"+tt.query, nil)
			assert.Equal(t, tt.want, ExtractPageParams(r, 100))
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	type body struct {
		Text string `json:"text"`
	}

	var ok body
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, ParseJSONBody(httptest.NewRecorder(), r, &ok, 0))
	assert.Equal(t, "hi", ok.Text)

	for name, payload := range map[string]string{
		"unknown field": `{"text":"hi","extra":1}`,
		"empty":         ``,
		"two objects":   `{"text":"a"}{"text":"b"}`,
		"too large":     `{"text":"` + strings.Repeat("x", 100) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			var b body
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
			assert.Error(t, ParseJSONBody(httptest.NewRecorder(), r, &b, 64))
		})
	}
}
