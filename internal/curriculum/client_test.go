package curriculum

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(ClientOptions{
		BaseURL:  srv.URL,
		Token:    "secret",
		Attempts: 3,
		Backoff:  0,
		Log:      zerolog.Nop(),
	})
}

func TestClient_CurriculumFollowsPages(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, `{"count":3,"next":%q,"results":[
				{"_class":"chapter","id":1,"title":"Intro","sort_order":3},
				{"_class":"lecture","id":2,"title":"Welcome","sort_order":2,
				 "asset":{"asset_type":"Video","time_estimation":120,
				          "captions":[{"locale_id":"en_US","url":"https://cdn/x.vtt"}]}}
			]}`, srv.URL+"/api-2.0/courses/7/subscriber-curriculum-items/?page=2")
		case "2":
			fmt.Fprint(w, `{"count":3,"next":null,"results":[
				{"_class":"quiz","id":3,"title":"Quiz","sort_order":1}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	records, err := newTestClient(srv).Curriculum(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, KindChapter, records[0].Kind)
	assert.Equal(t, KindLecture, records[1].Kind)
	assert.True(t, records[1].IsVideo())
	assert.Equal(t, 120, records[1].DurationSeconds)
	assert.Equal(t, []CaptionTrackRef{{LocaleCode: "en_US", SourceURL: "https://cdn/x.vtt"}}, records[1].CaptionTracks)
	assert.Equal(t, KindOther, records[2].Kind)
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id":7,"title":" Go Basics ","url":"/course/go-basics/"}`)
	}))
	defer srv.Close()

	info, err := newTestClient(srv).Course(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "Go Basics", info.Title)
	assert.Equal(t, "/course/go-basics/", info.Path)
}

func TestClient_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Course(context.Background(), "7")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, IsStatus(err, http.StatusBadGateway))
}

func TestClient_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Caption(context.Background(), srv.URL+"/caption.vtt?sig=abc")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.False(t, strings.Contains(err.Error(), "sig=abc"), "query string must be redacted: %v", err)
}

func TestClient_CaptionTokenStaysOnContentHost(t *testing.T) {
	var cdnAuth, apiAuth atomic.Value
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cdnAuth.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, "WEBVTT\n")
	}))
	defer cdn.Close()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiAuth.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, "WEBVTT\n")
	}))
	defer api.Close()

	c := newTestClient(api)
	body, err := c.Caption(context.Background(), cdn.URL+"/en.vtt?Expires=1&Signature=x")
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", body)
	assert.Equal(t, "", cdnAuth.Load())

	_, err = c.Caption(context.Background(), api.URL+"/captions/en.vtt")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", apiAuth.Load())
}

func TestClient_LectureURL(t *testing.T) {
	c := NewClient(ClientOptions{BaseURL: "https://example.com/", Log: zerolog.Nop()})
	tests := []struct {
		name string
		info *CourseInfo
		want string
	}{
		{"with_path", &CourseInfo{ID: 7, Path: "/course/go-basics/"}, "https://example.com/course/go-basics/learn/lecture/42"},
		{"path_without_slashes", &CourseInfo{ID: 7, Path: "course/go-basics"}, "https://example.com/course/go-basics/learn/lecture/42"},
		{"no_path", &CourseInfo{ID: 7}, "https://example.com/course/7/learn/lecture/42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.LectureURL(tt.info, 42))
		})
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindChapter, ParseKind("chapter"))
	assert.Equal(t, KindLecture, ParseKind(" Lecture "))
	assert.Equal(t, KindOther, ParseKind("practice"))
	assert.Equal(t, KindOther, ParseKind(""))
}
