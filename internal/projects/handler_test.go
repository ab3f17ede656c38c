package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/rbac"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

type memoryRepo struct {
	nextID   int64
	projects map[int64]*Project
	inUse    map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, projects: map[int64]*Project{}, inUse: map[int64]bool{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *memoryRepo) List(_ context.Context) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, p *Project) error {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	m.projects[p.ID] = &stored
	return nil
}

func (m *memoryRepo) Update(_ context.Context, p *Project) error {
	stored, ok := m.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	*stored = *p
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	if m.inUse[id] {
		return ErrInUse
	}
	delete(m.projects, id)
	return nil
}

var _ RepositoryPort = (*memoryRepo)(nil)

func newRouter(repo RepositoryPort) chi.Router {
	handler := NewHandler(nil, NewService(repo, nil, nil), rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/projects", handler.MountRoutes)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, actor shared.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &actor))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

var (
	gm         = shared.Principal{UserID: 1, Role: workflow.RoleGeneralManager}
	supervisor = shared.Principal{UserID: 2, Role: workflow.RoleSupervisor}
	admin      = shared.Principal{UserID: 3, Role: workflow.RoleAdmin}
)

func TestCreateDefaultsToActive(t *testing.T) {
	router := newRouter(newMemoryRepo())

	res := doJSON(t, router, http.MethodPost, "/projects", supervisor, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings",
	})
	require.Equal(t, http.StatusCreated, res.Code)

	var p Project
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	require.Equal(t, StatusActive, p.Status)
}

func TestWritesBelongToSupervisorAndAdmin(t *testing.T) {
	router := newRouter(newMemoryRepo())

	res := doJSON(t, router, http.MethodPost, "/projects", gm, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings",
	})
	require.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(t, router, http.MethodPost, "/projects", admin, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings",
	})
	require.Equal(t, http.StatusCreated, res.Code)
}

func TestReadOpenToAllRoles(t *testing.T) {
	repo := newMemoryRepo()
	router := newRouter(repo)
	res := doJSON(t, router, http.MethodPost, "/projects", supervisor, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings",
	})
	require.Equal(t, http.StatusCreated, res.Code)

	res = doJSON(t, router, http.MethodGet, "/projects", gm, nil)
	require.Equal(t, http.StatusOK, res.Code)

	var out struct {
		Data []Project `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	repo := newMemoryRepo()
	router := newRouter(repo)
	res := doJSON(t, router, http.MethodPost, "/projects", supervisor, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings",
	})
	require.Equal(t, http.StatusCreated, res.Code)

	res = doJSON(t, router, http.MethodPut, "/projects/1", supervisor, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings", "status": "abandoned",
	})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = doJSON(t, router, http.MethodPut, "/projects/1", supervisor, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings", "status": "on_hold",
	})
	require.Equal(t, http.StatusOK, res.Code)
	var p Project
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &p))
	require.Equal(t, StatusOnHold, p.Status)
}

func TestDeleteInUseConflicts(t *testing.T) {
	repo := newMemoryRepo()
	router := newRouter(repo)
	res := doJSON(t, router, http.MethodPost, "/projects", supervisor, map[string]string{
		"name": "Harbor Tower", "owner_name": "Coastal Holdings",
	})
	require.Equal(t, http.StatusCreated, res.Code)
	repo.inUse[1] = true

	res = doJSON(t, router, http.MethodDelete, "/projects/1", supervisor, nil)
	require.Equal(t, http.StatusConflict, res.Code)

	res = doJSON(t, router, http.MethodDelete, "/projects/99", supervisor, nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}
