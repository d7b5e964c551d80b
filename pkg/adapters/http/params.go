package http

import (
	"fmt"
	"net/http"

	"github.com/aretw0/automata/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// pathParam binds a simple-style path parameter the way generated servers do.
func pathParam(r *http.Request, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", fmt.Errorf("%w: invalid format for parameter %s: %v", errBadRequest, name, err)
	}
	return value, nil
}

// bindQuery binds an optional form-style query parameter into dest.
func bindQuery(r *http.Request, name string, explode bool, dest any) error {
	if err := runtime.BindQueryParameter("form", explode, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("%w: invalid format for parameter %s: %v", errBadRequest, name, err)
	}
	return nil
}

func conversionParam(r *http.Request) (domain.Conversion, error) {
	raw, err := pathParam(r, "kind")
	if err != nil {
		return "", err
	}
	return domain.ParseConversion(raw)
}
