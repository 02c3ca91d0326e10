package sharing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/JCampos05/Backend-Taskeer/internal/components/identity"
	"github.com/JCampos05/Backend-Taskeer/internal/components/notify"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/store"
)

// testAuth injects the user id from the X-Test-User header, standing in
// for the session middleware.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get("X-Test-User"); v != "" {
			id, _ := strconv.ParseInt(v, 10, 64)
			r = r.WithContext(identity.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func handlerFixture(t *testing.T) (*Service, http.Handler) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(db) })
	require.NoError(t, store.Migrate(db, &Resource{}, &Grant{}, &AuditEntry{}))

	dir := &fakeDirectory{byEmail: map[string]int64{aliceMail: aliceID, bobMail: bobID}}
	svc := NewService(db, dir, notify.Discard{}, nil)
	h := NewHandler(svc, NewResolver(svc.Store()), nil)

	r := chi.NewRouter()
	r.Use(testAuth)
	h.Routes(r)
	return svc, r
}

func doJSON(t *testing.T, h http.Handler, method, path string, userID int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func reasonCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			ReasonCode string `json:"reason_code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.ReasonCode
}

func TestHandlerShareFlow(t *testing.T) {
	_, h := handlerFixture(t)

	// Create a category.
	rec := doJSON(t, h, http.MethodPost, "/categories", ownerID, `{"name":"inbox"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat Resource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))

	// Generate its share key.
	path := fmt.Sprintf("/share/category/%d/key", cat.ID)
	rec = doJSON(t, h, http.MethodPost, path, ownerID, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var key KeyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &key))
	require.True(t, ValidateKey(key.Key))

	// A second request reuses it.
	rec = doJSON(t, h, http.MethodPost, path, ownerID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Alice joins with the key.
	rec = doJSON(t, h, http.MethodPost, "/share/join", aliceID, `{"key":"`+key.Key+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var joined JoinResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	require.Equal(t, "colaborador", joined.Role)

	// The member list shows both.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/share/category/%d/members", cat.ID), aliceID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var members struct {
		Members []GrantInfo `json:"members"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	require.Len(t, members.Members, 2)

	// Owner invites bob as editor.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/share/category/%d/invite", cat.ID), ownerID,
		`{"email":"`+bobMail+`","role":"editor"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Owner demotes bob.
	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/share/category/%d/members/%d/role", cat.ID, bobID), ownerID,
		`{"role":"lector"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Owner revokes alice.
	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/share/category/%d/members/%d", cat.ID, aliceID), ownerID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Alice lost access.
	rec = doJSON(t, h, http.MethodGet, "/share/accessible", aliceID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var accessible struct {
		Resources []ResourceRef `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accessible))
	require.Empty(t, accessible.Resources)

	// The audit trail recorded everything.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/share/category/%d/audit", cat.ID), ownerID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var audit struct {
		Entries []AuditEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	require.Len(t, audit.Entries, 6)

	// Owner un-shares.
	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/share/category/%d/", cat.ID), ownerID, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerErrorMapping(t *testing.T) {
	svc, h := handlerFixture(t)

	cat, err := svc.CreateCategory(context.Background(), ownerID, "inbox")
	require.NoError(t, err)
	_, err = svc.GenerateShareKey(context.Background(), TypeCategory, cat.ID, ownerID)
	require.NoError(t, err)

	// Validation error -> 400 with the engine's reason code.
	rec := doJSON(t, h, http.MethodPost, "/share/join", aliceID, `{"key":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, ReasonInvalidKey, reasonCode(t, rec))

	// Unknown key -> 404.
	rec = doJSON(t, h, http.MethodPost, "/share/join", aliceID, `{"key":"AAAA0000"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, ReasonKeyNotFound, reasonCode(t, rec))

	// Permission error -> 403.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/share/category/%d/invite", cat.ID), mallory,
		`{"email":"`+aliceMail+`","role":"editor"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, ReasonForbidden, reasonCode(t, rec))

	// Conflict -> 409.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/share/category/%d/invite", cat.ID), ownerID,
		`{"email":"`+aliceMail+`","role":"editor"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/share/category/%d/invite", cat.ID), ownerID,
		`{"email":"`+aliceMail+`","role":"editor"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, ReasonAlreadyMember, reasonCode(t, rec))

	// Bad resource type in the path.
	rec = doJSON(t, h, http.MethodPost, "/share/folder/1/key", ownerID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing identity -> 401.
	rec = doJSON(t, h, http.MethodGet, "/share/accessible", 0, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCreateList(t *testing.T) {
	svc, h := handlerFixture(t)

	cat, err := svc.CreateCategory(context.Background(), ownerID, "inbox")
	require.NoError(t, err)
	_, err = svc.GenerateShareKey(context.Background(), TypeCategory, cat.ID, ownerID)
	require.NoError(t, err)
	_, err = svc.InviteByEmail(context.Background(), TypeCategory, cat.ID, ownerID, aliceMail, "editor")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/lists", ownerID,
		fmt.Sprintf(`{"name":"groceries","category_id":%d}`, cat.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	var list Resource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))

	// The cascade gave alice a grant on the new list.
	grant, err := svc.Store().GetGrant(context.Background(), TypeList, list.ID, aliceID)
	require.NoError(t, err)
	require.Equal(t, RoleEditor, grant.Role)
}
