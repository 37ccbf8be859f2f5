package forum

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

func newTestServer(t *testing.T, opts Options) (*echo.Echo, *stack) {
	t.Helper()
	st := newStack(t, opts)
	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(st.svc).RegisterRoutes(e.Group("/api/v1"))
	return e, st
}

func do(e *echo.Echo, method, path, body string, actor *auth.Actor) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if actor != nil {
		req.Header.Set(auth.HeaderDevUserID, actor.ID)
		req.Header.Set(auth.HeaderDevUserName, actor.DisplayName)
		req.Header.Set(auth.HeaderDevUserRole, string(actor.Role))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createPost(t *testing.T, e *echo.Echo, actor *auth.Actor, title string) Post {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/v1/posts", `{"title":"`+title+`","content":"body","tags":["a"]}`, actor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post: %d %s", rec.Code, rec.Body.String())
	}
	var p Post
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHandler_Unauthenticated(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	if rec := do(e, http.MethodGet, "/api/v1/posts", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_CreateAndGetPost(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	p := createPost(t, e, patient1, "Trial Results")
	if p.Author.ID != "p1" || p.Title != "Trial Results" {
		t.Errorf("unexpected post: %+v", p)
	}

	rec := do(e, http.MethodGet, "/api/v1/posts/"+p.ID.String(), "", researcher1)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	var view struct {
		ID          string      `json:"id"`
		Replies     []Reply     `json:"replies"`
		Reactions   ReactionMap `json:"reactions"`
		Permissions Permissions `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.ID != p.ID.String() {
		t.Errorf("unexpected id %q", view.ID)
	}
	if view.Permissions != (Permissions{CanReply: true, CanReact: true}) {
		t.Errorf("unexpected permissions: %+v", view.Permissions)
	}
	if !strings.Contains(rec.Body.String(), `"replies":[]`) || !strings.Contains(rec.Body.String(), `"reactions":{}`) {
		t.Errorf("empty collections should render as [] and {}: %s", rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/api/v1/posts/not-a-uuid", "", researcher1); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/posts/00000000-0000-0000-0000-000000000001", "", researcher1); rec.Code != http.StatusNotFound {
		t.Errorf("missing post: expected 404, got %d", rec.Code)
	}
}

func TestHandler_CreatePostValidation(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	rec := do(e, http.MethodPost, "/api/v1/posts", `{"title":"","content":"x"}`, patient1)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ListPosts(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	createPost(t, e, patient1, "one")
	createPost(t, e, patient2, "two")
	createPost(t, e, researcher1, "three")

	rec := do(e, http.MethodGet, "/api/v1/posts?limit=2", "", patient1)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var body struct {
		Data []struct {
			Title       string      `json:"title"`
			Permissions Permissions `json:"permissions"`
		} `json:"data"`
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 3 || len(body.Data) != 2 || !body.HasMore {
		t.Fatalf("unexpected page: %+v", body)
	}
	if body.Data[0].Title != "three" {
		t.Errorf("expected newest first, got %q", body.Data[0].Title)
	}
}

func TestHandler_DeletePost(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	p := createPost(t, e, patient1, "mine")

	if rec := do(e, http.MethodDelete, "/api/v1/posts/"+p.ID.String(), "", patient2); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/api/v1/posts/"+p.ID.String(), "", patient1); rec.Code != http.StatusNoContent {
		t.Errorf("owner: expected 204, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/api/v1/posts/"+p.ID.String(), "", patient1); rec.Code != http.StatusNotFound {
		t.Errorf("deleted: expected 404, got %d", rec.Code)
	}
}

func TestHandler_RepliesAndReactions(t *testing.T) {
	e, _ := newTestServer(t, Options{})
	p := createPost(t, e, patient1, "q")
	base := "/api/v1/posts/" + p.ID.String()

	rec := do(e, http.MethodPost, base+"/replies", `{"content":"answer"}`, researcher1)
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply: %d %s", rec.Code, rec.Body.String())
	}
	var r Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatal(err)
	}

	rec = do(e, http.MethodPut, base+"/reactions", `{"emoji":"👍"}`, researcher1)
	if rec.Code != http.StatusOK {
		t.Fatalf("post reaction: %d", rec.Code)
	}
	var reactions ReactionMap
	if err := json.Unmarshal(rec.Body.Bytes(), &reactions); err != nil {
		t.Fatal(err)
	}
	if len(reactions["👍"]) != 1 {
		t.Errorf("unexpected reactions: %v", reactions)
	}

	rec = do(e, http.MethodPut, base+"/replies/"+r.ID.String()+"/reactions", `{"emoji":"🙏"}`, patient1)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "p1") {
		t.Errorf("reply reaction: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPut, base+"/reactions", `{"emoji":""}`, researcher1); rec.Code != http.StatusBadRequest {
		t.Errorf("empty emoji: expected 400, got %d", rec.Code)
	}

	if rec := do(e, http.MethodDelete, base+"/replies/"+r.ID.String(), "", patient1); rec.Code != http.StatusForbidden {
		t.Errorf("non-author reply delete: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, base+"/replies/"+r.ID.String(), "", researcher1); rec.Code != http.StatusNoContent {
		t.Errorf("author reply delete: expected 204, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, base+"/replies/bogus", "", researcher1); rec.Code != http.StatusBadRequest {
		t.Errorf("bad reply id: expected 400, got %d", rec.Code)
	}
}

func TestHandler_StrictRolesForbidden(t *testing.T) {
	e, _ := newTestServer(t, Options{StrictRoles: true})
	p := createPost(t, e, patient1, "q")
	rec := do(e, http.MethodPut, "/api/v1/posts/"+p.ID.String()+"/reactions", `{"emoji":"👍"}`, patient2)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
