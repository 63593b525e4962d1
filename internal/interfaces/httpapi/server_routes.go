package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerGameRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/state", handler.GetState)
	mux.HandleFunc("POST /v1/pause", handler.SetPause)
	mux.HandleFunc("PUT /v1/profile", handler.UpdateProfile)
	mux.HandleFunc("POST /v1/tasks/{taskID}/complete", handler.CompleteTask)
	mux.HandleFunc("POST /v1/ads/click", handler.ClickAd)
	mux.HandleFunc("GET /v1/ledger", handler.GetLedger)
	mux.HandleFunc("GET /v1/leaderboard", handler.GetLeaderboard)
	mux.HandleFunc("GET /v1/settlement/preview", handler.PreviewSettlement)
}

func registerMarketRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/market/prices", handler.ListPrices)
	mux.HandleFunc("POST /v1/shop/purchases", handler.PurchaseItem)
	mux.HandleFunc("GET /v1/timeline", handler.ListTimeline)
	mux.HandleFunc("POST /v1/timeline/posts", handler.SharePost)
	mux.HandleFunc("POST /v1/timeline/posts/{postID}/purchase", handler.PurchasePost)
}

func registerRelayRoutes(mux *http.ServeMux, relay http.Handler) {
	if relay == nil {
		return
	}
	mux.Handle("GET "+relayPathPrefix+"{sessionID}", relay)
}
