// Mock router helper shared by package tests that need a real gin.Engine
// without standing up cmd/server's full route wiring.

package testutil

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"sporthub/pkg/middlewares"
)

var testRouter *gin.Engine
var once sync.Once

// MockRouter returns a process-wide singleton gin.Engine with CORS wired
// open for every origin, in the gin mode named by the GIN_MODE environment
// variable.
func MockRouter() *gin.Engine {
	once.Do(func() {
		gin.SetMode(os.Getenv("GIN_MODE"))
		testRouter = gin.Default()
		testRouter.Use(middlewares.CORSMiddleware("*"))
	})
	return testRouter
}
