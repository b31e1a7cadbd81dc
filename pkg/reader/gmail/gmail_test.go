package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/blazzjosh/lucra.ai/pkg/parser"
)

func TestBuildQuery(t *testing.T) {
	query := BuildQuery(parser.DefaultBanks(), "2024/12/31")

	for _, want := range []string{
		`subject:"Debit Alert"`,
		`subject:"Transaction Alert"`,
		`subject:"Debit Transaction"`,
		`subject:"Transaction Notification"`,
		`subject:"UBA Debit Alert"`,
		" OR ",
		"after:2024/12/31",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}

	// Keywords shared by several banks appear once.
	if strings.Count(query, `subject:"Debit Alert"`) != 1 {
		t.Errorf("query %q should contain the shared keyword once", query)
	}
}

func TestBuildQuery_NoAfterDate(t *testing.T) {
	query := BuildQuery(parser.DefaultBanks(), "")
	if strings.Contains(query, "after:") {
		t.Errorf("query %q should have no after: filter", query)
	}
}

func encodeBody(s string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(s))}
}

func TestExtractHTMLBody(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name: "html part",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: encodeBody("plain")},
					{MimeType: "text/html", Body: encodeBody("<b>html</b>")},
				},
			},
			want: "<b>html</b>",
		},
		{
			name: "nested multipart",
			payload: &gmail.MessagePart{
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: encodeBody("plain")},
							{MimeType: "text/html", Body: encodeBody("<p>nested</p>")},
						},
					},
				},
			},
			want: "<p>nested</p>",
		},
		{
			name: "fallback to top-level body",
			payload: &gmail.MessagePart{
				Body: encodeBody("top level"),
			},
			want: "top level",
		},
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name:    "nothing decodable",
			payload: &gmail.MessagePart{},
			want:    "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractHTMLBody(tc.payload); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBareAddress(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"ProvidusBank <alert@providusbank.com>", "alert@providusbank.com"},
		{"alert@providusbank.com", "alert@providusbank.com"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := bareAddress(tc.header); got != tc.want {
			t.Errorf("bareAddress(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestEmailDate(t *testing.T) {
	msg := &gmail.Message{
		InternalDate: 1735689600000, // 2025-01-01T00:00:00Z in millis
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Date", Value: "Wed, 15 Jan 2025 14:30:45 +0100"},
			},
		},
	}

	want := time.Date(2025, time.January, 15, 14, 30, 45, 0, time.FixedZone("", 3600))
	if got := emailDate(msg); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Without a parseable header the provider timestamp wins.
	msg.Payload.Headers[0].Value = "not a date"
	if got := emailDate(msg); !got.Equal(time.Unix(1735689600, 0)) {
		t.Errorf("fallback: got %v, want %v", got, time.Unix(1735689600, 0))
	}
}
