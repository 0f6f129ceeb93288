package handlers

import (
	"net/http"
	"os"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/viewfinderhq/viewfinder/pkg/gallery"
)

type GalleryHandler struct {
	Store *gallery.Store
}

func (h *GalleryHandler) List(c *gin.Context) {
	items, err := h.Store.Captures()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read capture index"})
		return
	}

	// Newest first.
	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if items == nil {
		items = []gallery.Capture{}
	}
	c.JSON(http.StatusOK, gin.H{"captures": items})
}

func (h *GalleryHandler) Get(c *gin.Context) {
	path, err := h.Store.Path(c.Param("name"))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such capture"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "image/jpeg")
	c.File(path)
}
