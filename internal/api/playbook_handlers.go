package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/pkg/httputil"
	"github.com/ignite/playbook-engine/internal/playbook"
)

// HandleListPlaybooks returns all playbooks for the org.
func (h *Handlers) HandleListPlaybooks(w http.ResponseWriter, r *http.Request) {
	store := h.playbookStores(h.orgID(r))
	playbooks, err := store.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if playbooks == nil {
		playbooks = []playbook.Playbook{}
	}
	httputil.OK(w, map[string]interface{}{
		"playbooks": playbooks,
		"total":     len(playbooks),
	})
}

// HandleCreatePlaybook creates a playbook from a wizard-authored config.
func (h *Handlers) HandleCreatePlaybook(w http.ResponseWriter, r *http.Request) {
	var p playbook.Playbook
	if !httputil.Decode(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	store := h.playbookStores(h.orgID(r))
	if err := store.Create(r.Context(), &p); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, p)
}

func (h *Handlers) playbookID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "playbookId"))
	if err != nil {
		httputil.BadRequest(w, "invalid playbook id")
		return uuid.Nil, false
	}
	return id, true
}

// HandleGetPlaybook returns one playbook.
func (h *Handlers) HandleGetPlaybook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playbookID(w, r)
	if !ok {
		return
	}
	store := h.playbookStores(h.orgID(r))
	p, err := store.Get(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if p == nil {
		httputil.NotFound(w, "playbook not found")
		return
	}
	httputil.OK(w, p)
}

// HandleUpdatePlaybook replaces a playbook's configuration.
func (h *Handlers) HandleUpdatePlaybook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playbookID(w, r)
	if !ok {
		return
	}
	var p playbook.Playbook
	if !httputil.Decode(w, r, &p) {
		return
	}
	p.ID = id
	if err := p.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	store := h.playbookStores(h.orgID(r))
	if err := store.Update(r.Context(), &p); err != nil {
		httputil.NotFound(w, "playbook not found")
		return
	}
	httputil.OK(w, p)
}

// HandleDeletePlaybook removes a playbook.
func (h *Handlers) HandleDeletePlaybook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playbookID(w, r)
	if !ok {
		return
	}
	store := h.playbookStores(h.orgID(r))
	if err := store.Delete(r.Context(), id); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
