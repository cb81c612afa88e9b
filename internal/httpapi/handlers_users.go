package httpapi

import (
	"net/http"

	"github.com/marshallshelly/fenceorders/internal/service"
)

type usernameRequest struct {
	Username string `json:"username" validate:"required,max=100"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) error {
	resp, err := a.svc.Users.List(r.Context(), principal(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	resp, err := a.svc.Users.Get(r.Context(), principal(r), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) error {
	var in service.CreateUserInput
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	resp, err := a.svc.Users.Create(r.Context(), principal(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, resp)
	return nil
}

func (a *API) updateUsername(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var in usernameRequest
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	resp, err := a.svc.Users.UpdateUsername(r.Context(), principal(r), id, in.Username)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) updatePassword(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var in service.PasswordChange
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	if err := a.svc.Users.UpdatePassword(r.Context(), principal(r), id, in); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) setRole(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var in roleRequest
	if err := a.decode(w, r, &in); err != nil {
		return err
	}
	resp, err := a.svc.Users.SetRole(r.Context(), principal(r), id, in.Role)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := a.svc.Users.Delete(r.Context(), principal(r), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
