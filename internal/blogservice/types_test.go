package blogservice

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlog_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		wantID     string
		wantAuthor Author
		wantTags   []string
	}{
		{
			name:       "embedded author",
			input:      `{"_id":"b1","title":"T","author":{"_id":"U1","name":"Jane","avatar":"a.png","bio":"hi"}}`,
			wantID:     "b1",
			wantAuthor: Author{ID: "U1", Name: "Jane", Avatar: "a.png", Bio: "hi", Embedded: true},
			wantTags:   []string{},
		},
		{
			name:       "bare author id",
			input:      `{"_id":"b1","author":"U1","tags":["go"]}`,
			wantID:     "b1",
			wantAuthor: Author{ID: "U1"},
			wantTags:   []string{"go"},
		},
		{
			name:       "id instead of _id",
			input:      `{"id":"b2","author":{"id":"U2"}}`,
			wantID:     "b2",
			wantAuthor: Author{ID: "U2", Embedded: true},
			wantTags:   []string{},
		},
		{
			name:       "null author",
			input:      `{"_id":"b3","author":null}`,
			wantID:     "b3",
			wantAuthor: Author{},
			wantTags:   []string{},
		},
		{
			name:       "missing author",
			input:      `{"_id":"b4"}`,
			wantID:     "b4",
			wantAuthor: Author{},
			wantTags:   []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var b Blog
			require.NoError(t, json.Unmarshal([]byte(tc.input), &b))

			assert.Equal(t, tc.wantID, b.ID)
			assert.Equal(t, tc.wantAuthor, b.Author)
			assert.Equal(t, tc.wantTags, b.Tags)
		})
	}
}

func TestBlog_UnmarshalJSONCreatedAt(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "rfc3339 with millis", input: `{"_id":"b","createdAt":"2024-05-01T10:00:00.000Z"}`, want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: `{"_id":"b","createdAt":"2024-05-01T10:00:00Z"}`, want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{name: "date only", input: `{"_id":"b","createdAt":"2024-05-01"}`, want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{name: "empty", input: `{"_id":"b","createdAt":""}`},
		{name: "null", input: `{"_id":"b","createdAt":null}`},
		{name: "missing", input: `{"_id":"b"}`},
		{name: "not a date", input: `{"_id":"b","createdAt":"yesterday"}`},
		{name: "number", input: `{"_id":"b","createdAt":1714557600}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var b Blog
			require.NoError(t, json.Unmarshal([]byte(tc.input), &b))

			assert.Equal(t, "b", b.ID)
			assert.True(t, tc.want.Equal(b.CreatedAt), "got %v", b.CreatedAt)
		})
	}
}

func TestBlog_UnmarshalJSONInvalidAuthor(t *testing.T) {
	var b Blog
	err := json.Unmarshal([]byte(`{"_id":"b1","author":42}`), &b)
	assert.Error(t, err)
}

func TestAuthor_KeepsFormOnEncode(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare", input: `"U1"`, want: `"U1"`},
		{name: "embedded", input: `{"_id":"U1","name":"Jane"}`, want: `{"_id":"U1","name":"Jane"}`},
		{name: "embedded with id key", input: `{"id":"U1"}`, want: `{"_id":"U1"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var a Author
			require.NoError(t, json.Unmarshal([]byte(tc.input), &a))

			out, err := json.Marshal(a)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(out))
		})
	}
}

func TestBlog_IsOwnedBy(t *testing.T) {
	testCases := []struct {
		name   string
		blog   string
		userID string
		want   bool
	}{
		{name: "embedded author matches", blog: `{"_id":"b","author":{"_id":"U1"}}`, userID: "U1", want: true},
		{name: "bare author matches", blog: `{"_id":"b","author":"U1"}`, userID: "U1", want: true},
		{name: "userId matches", blog: `{"_id":"b","userId":"U1"}`, userID: "U1", want: true},
		{name: "other author", blog: `{"_id":"b","author":{"_id":"U2"}}`, userID: "U1", want: false},
		{name: "other bare author", blog: `{"_id":"b","author":"U2","userId":"U2"}`, userID: "U1", want: false},
		{name: "empty viewer", blog: `{"_id":"b","author":""}`, userID: "", want: false},
		{name: "no author at all", blog: `{"_id":"b"}`, userID: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var b Blog
			require.NoError(t, json.Unmarshal([]byte(tc.blog), &b))
			assert.Equal(t, tc.want, b.IsOwnedBy(tc.userID))
		})
	}
}

func TestBlog_AuthorName(t *testing.T) {
	testCases := []struct {
		name string
		blog Blog
		want string
	}{
		{name: "embedded name", blog: Blog{Author: Author{ID: "U1", Name: "Jane", Embedded: true}, Username: "jd"}, want: "Jane"},
		{name: "username", blog: Blog{Author: Author{ID: "U1"}, Username: "jd"}, want: "jd"},
		{name: "bare id", blog: Blog{Author: Author{ID: "U1"}}, want: "U1"},
		{name: "nothing", blog: Blog{}, want: "Anonymous"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.blog.AuthorName())
		})
	}
}

func TestBlog_Excerpt(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		n       int
		want    string
	}{
		{name: "short", content: "<p>Hello</p>", n: 100, want: "Hello"},
		{name: "truncated", content: "<p>Hello, World!</p>", n: 5, want: "Hello..."},
		{name: "script removed", content: "<script>alert(1)</script><b>Hi</b> there", n: 100, want: "Hi there"},
		{name: "counts characters", content: "héllo wörld", n: 5, want: "héllo..."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := Blog{Content: tc.content}
			assert.Equal(t, tc.want, b.Excerpt(tc.n))
		})
	}
}

func TestBlog_RenderHTML(t *testing.T) {
	b := Blog{Content: "# Title\n\nSome **bold** text.\n\n<script>alert('x')</script>"}

	out, err := b.RenderHTML()
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "alert")
}
