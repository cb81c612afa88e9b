package httpapi

import (
	"net/http"

	"github.com/marshallshelly/fenceorders/internal/service"
)

func (a *API) register(w http.ResponseWriter, r *http.Request) error {
	var in service.RegisterInput
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	resp, err := a.svc.Auth.Register(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, resp)
	return nil
}

func (a *API) login(w http.ResponseWriter, r *http.Request) error {
	var in service.LoginInput
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	resp, err := a.svc.Auth.Login(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) me(w http.ResponseWriter, r *http.Request) error {
	resp, err := a.svc.Auth.Me(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) upsertClient(w http.ResponseWriter, r *http.Request) error {
	var in service.ClientInput
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	resp, err := a.svc.Clients.Upsert(r.Context(), principal(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) listManagers(w http.ResponseWriter, r *http.Request) error {
	resp, err := a.svc.Managers.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) getManager(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	resp, err := a.svc.Managers.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
