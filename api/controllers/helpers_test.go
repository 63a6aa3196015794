package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func withURLParam(req *http.Request, name, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}
