package router

import (
	"github.com/gin-gonic/gin"

	"natal-book-ai/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, bookHandler *handler.BookHandler, extractHandler *handler.ExtractHandler) {
	books := v1.Group("/books")
	{
		books.POST("", bookHandler.CreateBook)
		books.POST("/plan", bookHandler.PlanBook)
		books.GET("/jobs", bookHandler.ListBookJobs)
		books.GET("/jobs/:jid", bookHandler.GetBookJob)
	}

	if extractHandler != nil {
		v1.POST("/birth-data/extract", extractHandler.ExtractBirthData)
	}
}
