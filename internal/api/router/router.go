package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/pixor/internal/api/handlers/render"
	"github.com/aliskhannn/pixor/internal/api/middleware"
)

func Setup(h *render.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.GET("/render/:spec", h.Render)              // synchronous render, source url in query
	api.POST("/render/jobs", h.CreateJob)           // enqueue an asynchronous render job
	api.GET("/render/jobs/:id", h.GetJob)           // job metadata by id
	api.GET("/render/jobs/:id/result", h.JobResult) // rendered bytes of a processed job
	api.DELETE("/render/jobs/:id", h.Delete)        // delete job and stored output

	return r
}
