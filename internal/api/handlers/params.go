package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "hookline/internal/api/context"
)

func param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps.ByName(name)
}
