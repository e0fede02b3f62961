package httpapi

import (
	"errors"
	"net/http"

	"societyos.org/internal/auth"
	"societyos.org/internal/society"
)

type createSocietyRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	PinCode  string `json:"pinCode"`
	Manager  string `json:"manager"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createSocietyResponse struct {
	Society *society.Society `json:"society"`
	Manager *auth.User       `json:"manager"`
}

type addMemberRequest struct {
	SocietyID string `json:"societyId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (a *API) handleCreateSociety(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createSocietyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	soc, manager, err := a.societies.CreateSocietyWithManager(r.Context(),
		auth.Profile{
			Name:     req.Manager,
			Phone:    req.Phone,
			Email:    req.Email,
			Password: req.Password,
			Role:     auth.RoleAdmin,
		},
		society.Profile{
			Name:    req.Name,
			Address: req.Address,
			City:    req.City,
			State:   req.State,
			PinCode: req.PinCode,
		},
	)
	if err != nil {
		// Provisioning is all-or-nothing; a failed step reports as a
		// server-side failure after compensation ran.
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Location", "/society/"+soc.ID)
	writeJSON(w, http.StatusCreated, createSocietyResponse{Society: soc, Manager: manager})
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := a.requirePermission(r.Context(), auth.PermSocietyManage); err != nil {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	member, err := a.societies.AddMember(r.Context(), req.SocietyID, auth.Profile{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Role:     auth.RoleMember,
	})
	if err != nil {
		handleSocietyError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

func handleSocietyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, society.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, society.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "society not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
