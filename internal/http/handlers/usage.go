package handlers

import "net/http"

func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Jobs.Usage(r.Context(), a.currentUserID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, stats)
}
