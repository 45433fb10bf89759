package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCreds() Credentials {
	return Credentials{
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		UserAgent:    "redditharvest tests",
	}
}

// newTestServer serves a token endpoint at /token and hands everything else
// to handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	client, err := NewClient(testCreds(), ClientOptions{
		BaseURL:           srv.URL,
		TokenURL:          srv.URL + "/token",
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)

	return client
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(Credentials{ClientID: "only-id"}, ClientOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing credentials")
}

func TestHotPosts(t *testing.T) {
	var gotUserAgent atomic.Value

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent.Store(r.Header.Get("User-Agent"))

		require.Equal(t, "/r/golang/hot", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("limit"))
		require.Equal(t, "1", r.URL.Query().Get("raw_json"))

		resp := map[string]any{
			"kind": "Listing",
			"data": map[string]any{
				"after": "t3_def",
				"children": []any{
					map[string]any{
						"kind": "t3",
						"data": map[string]any{
							"id":           "abc",
							"title":        "A post",
							"author":       "someone",
							"score":        42,
							"ups":          40,
							"upvote_ratio": 0.93,
							"num_comments": 7,
							"permalink":    "/r/golang/comments/abc/a_post/",
							"url":          "https://i.redd.it/pic.jpg",
							"created_utc":  1700000000.0,
						},
					},
					map[string]any{
						"kind": "more",
						"data": map[string]any{},
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	client := newTestClient(t, srv)

	result, err := client.HotPosts(context.Background(), "golang", HotPostsOptions{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, "t3_def", result.After)
	require.Len(t, result.Posts, 1)

	post := result.Posts[0]
	require.Equal(t, "abc", post.ID)
	require.Equal(t, "A post", post.Title)
	require.Equal(t, 42, post.Score)
	require.Equal(t, 0.93, post.UpvoteRatio)
	require.Equal(t, "redditharvest tests", gotUserAgent.Load())
}

func TestComments(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/r/golang/comments/abc", r.URL.Path)

		body := `[
			{"kind":"Listing","data":{"children":[
				{"kind":"t3","data":{"id":"abc","title":"A post","author":"op"}}
			]}},
			{"kind":"Listing","data":{"children":[
				{"kind":"t1","data":{
					"id":"c1","author":"alice","body":"top level","score":5,
					"parent_id":"t3_abc",
					"replies":{"kind":"Listing","data":{"children":[
						{"kind":"t1","data":{"id":"c2","author":"bob","body":"reply","score":2,"parent_id":"t1_c1","replies":""}}
					]}}
				}},
				{"kind":"more","data":{"count":10}}
			]}}
		]`

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, body)
	})

	client := newTestClient(t, srv)

	result, err := client.Comments(context.Background(), "golang", "abc", CommentsOptions{})
	require.NoError(t, err)
	require.Equal(t, "abc", result.Post.ID)
	require.Len(t, result.Comments, 1, "more stub must be dropped")

	top := result.Comments[0]
	require.Equal(t, "c1", top.ID)
	require.Equal(t, "t3_abc", top.ParentID)
	require.Len(t, top.Replies, 1)
	require.Equal(t, "c2", top.Replies[0].ID)
	require.Empty(t, top.Replies[0].Replies)
}

func TestAboutSubreddit(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/r/golang/about", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"kind":"t5","data":{"id":"2rc7j","display_name":"golang","subscribers":250000}}`)
	})

	client := newTestClient(t, srv)

	info, err := client.AboutSubreddit(context.Background(), "golang")
	require.NoError(t, err)
	require.Equal(t, "golang", info.DisplayName)
	require.Equal(t, 250000, info.Subscribers)
}

func TestGet_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"kind":"Listing","data":{"after":"","children":[]}}`)
	})

	client := newTestClient(t, srv)

	result, err := client.HotPosts(context.Background(), "golang", HotPostsOptions{})
	require.NoError(t, err)
	require.Empty(t, result.Posts)
	require.Equal(t, int32(2), calls.Load())
}

func TestGet_ForbiddenNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "private subreddit", http.StatusForbidden)
	})

	client := newTestClient(t, srv)

	_, err := client.HotPosts(context.Background(), "secret", HotPostsOptions{})
	require.Error(t, err)
	require.True(t, IsForbidden(err))
	require.Equal(t, int32(1), calls.Load())
}
