package httpapi

// HandleCreateMySQL, HandleGetMySQLStatus, and HandleFailoverMySQL are thin
// aliases over the generic service lifecycle for the legacy /api/mysql
// surface, kept for callers written against the original MySQL-only API.
// They forward to the exact same handlers with product fixed to "mysql".

import "github.com/gin-gonic/gin"

const legacyMySQLProduct = "mysql"

func withProductParam(c *gin.Context, product string) {
	c.Params = append(c.Params, gin.Param{Key: "product", Value: product})
}

// HandleCreateMySQL is POST /api/mysql, equivalent to
// POST /api/services/mysql.
func (h *Handlers) HandleCreateMySQL(c *gin.Context) {
	withProductParam(c, legacyMySQLProduct)
	h.HandleCreateService(c)
}

// HandleGetMySQLStatus is GET /api/status/mysql/:namespace/:name, equivalent
// to GET /api/services/mysql/:namespace/:name.
func (h *Handlers) HandleGetMySQLStatus(c *gin.Context) {
	withProductParam(c, legacyMySQLProduct)
	h.HandleGetService(c)
}

// HandleFailoverMySQL is POST /api/mysql/:namespace/:name/failover,
// equivalent to POST /api/services/mysql/:namespace/:name/failover.
func (h *Handlers) HandleFailoverMySQL(c *gin.Context) {
	withProductParam(c, legacyMySQLProduct)
	h.HandleFailoverService(c)
}
