package controller

import (
	"errors"
	"net/http"
	"strconv"
)

const (
	defaultSamplesLimit = 100
	maxSamplesLimit     = 5000
)

func parseStationID(r *http.Request) (int, error) {
	s := r.PathValue("id")
	if s == "" {
		return 0, errors.New("missing station id")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid station id (expected positive integer)")
	}
	return n, nil
}

func parseSamplesQuery(r *http.Request) (limit int, err error) {
	limit = defaultSamplesLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return 0, errors.New("'limit' must be > 0")
		}
		if n > maxSamplesLimit {
			return 0, errors.New("'limit' must be <= 5000")
		}
		limit = n
	}
	return limit, nil
}
