package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/models"
	"bitbucket.org/stoagroup/leasing_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": info})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ok})
	}
}

// apiTokenHandler mints a signed API token for the session user, for cron
// jobs and other machine clients that cannot hold a Redis session.
func apiTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token}})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": users})
	}
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// optionalIntQuery reads an optional numeric filter like ?project_id=3.
func optionalIntQuery(c *gin.Context, name string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &id, true
}

// crudHandlers builds the five standard handlers for an entity whose model
// layer follows the Create/Update/Delete/Get/List signature convention.
type crudHandlers[T any, I any] struct {
	create func(c *gin.Context, input *I) (*T, error)
	update func(c *gin.Context, id int, input *I) (*T, error)
	delete func(c *gin.Context, id int) (*T, error)
	get    func(c *gin.Context, id int) (*T, error)
}

func (h crudHandlers[T, I]) createHandler(c *gin.Context) {
	var input I
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	out, err := h.create(c, &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h crudHandlers[T, I]) updateHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input I
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
		return
	}
	out, err := h.update(c, id, &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h crudHandlers[T, I]) deleteHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	out, err := h.delete(c, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h crudHandlers[T, I]) getHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	out, err := h.get(c, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func registerEntityRoutes(rg *gin.RouterGroup) {
	projects := crudHandlers[models.Project, models.NewProject]{
		create: func(c *gin.Context, in *models.NewProject) (*models.Project, error) {
			return models.CreateProject(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id int, in *models.NewProject) (*models.Project, error) {
			return models.UpdateProject(c.Request.Context(), id, in)
		},
		delete: func(c *gin.Context, id int) (*models.Project, error) {
			return models.DeleteProject(c.Request.Context(), id)
		},
		get: func(c *gin.Context, id int) (*models.Project, error) {
			return models.GetProject(c.Request.Context(), id)
		},
	}
	rg.GET("/projects", func(c *gin.Context) {
		out, err := models.GetProjects(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	})
	rg.GET("/projects/:id", projects.getHandler)
	rg.POST("/projects", projects.createHandler)
	rg.PUT("/projects/:id", projects.updateHandler)
	rg.DELETE("/projects/:id", projects.deleteHandler)

	banks := crudHandlers[models.Bank, models.NewBank]{
		create: func(c *gin.Context, in *models.NewBank) (*models.Bank, error) {
			return models.CreateBank(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id int, in *models.NewBank) (*models.Bank, error) {
			return models.UpdateBank(c.Request.Context(), id, in)
		},
		delete: func(c *gin.Context, id int) (*models.Bank, error) {
			return models.DeleteBank(c.Request.Context(), id)
		},
		get: func(c *gin.Context, id int) (*models.Bank, error) {
			return models.GetBank(c.Request.Context(), id)
		},
	}
	rg.GET("/banks", func(c *gin.Context) {
		out, err := models.GetBanks(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	})
	rg.GET("/banks/:id", banks.getHandler)
	rg.POST("/banks", banks.createHandler)
	rg.PUT("/banks/:id", banks.updateHandler)
	rg.DELETE("/banks/:id", banks.deleteHandler)

	persons := crudHandlers[models.Person, models.NewPerson]{
		create: func(c *gin.Context, in *models.NewPerson) (*models.Person, error) {
			return models.CreatePerson(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id int, in *models.NewPerson) (*models.Person, error) {
			return models.UpdatePerson(c.Request.Context(), id, in)
		},
		delete: func(c *gin.Context, id int) (*models.Person, error) {
			return models.DeletePerson(c.Request.Context(), id)
		},
		get: func(c *gin.Context, id int) (*models.Person, error) {
			return models.GetPerson(c.Request.Context(), id)
		},
	}
	rg.GET("/persons", func(c *gin.Context) {
		out, err := models.GetPersons(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	})
	rg.GET("/persons/:id", persons.getHandler)
	rg.POST("/persons", persons.createHandler)
	rg.PUT("/persons/:id", persons.updateHandler)
	rg.DELETE("/persons/:id", persons.deleteHandler)

	loans := crudHandlers[models.Loan, models.NewLoan]{
		create: func(c *gin.Context, in *models.NewLoan) (*models.Loan, error) {
			return models.CreateLoan(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id int, in *models.NewLoan) (*models.Loan, error) {
			return models.UpdateLoan(c.Request.Context(), id, in)
		},
		delete: func(c *gin.Context, id int) (*models.Loan, error) {
			return models.DeleteLoan(c.Request.Context(), id)
		},
		get: func(c *gin.Context, id int) (*models.Loan, error) {
			return models.GetLoan(c.Request.Context(), id)
		},
	}
	rg.GET("/loans", func(c *gin.Context) {
		projectId, ok := optionalIntQuery(c, "project_id")
		if !ok {
			return
		}
		out, err := models.GetLoans(c.Request.Context(), projectId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	})
	rg.GET("/loans/:id", loans.getHandler)
	rg.POST("/loans", loans.createHandler)
	rg.PUT("/loans/:id", loans.updateHandler)
	rg.DELETE("/loans/:id", loans.deleteHandler)

	covenants := crudHandlers[models.Covenant, models.NewCovenant]{
		create: func(c *gin.Context, in *models.NewCovenant) (*models.Covenant, error) {
			return models.CreateCovenant(c.Request.Context(), in)
		},
		update: func(c *gin.Context, id int, in *models.NewCovenant) (*models.Covenant, error) {
			return models.UpdateCovenant(c.Request.Context(), id, in)
		},
		delete: func(c *gin.Context, id int) (*models.Covenant, error) {
			return models.DeleteCovenant(c.Request.Context(), id)
		},
		get: func(c *gin.Context, id int) (*models.Covenant, error) {
			return models.GetCovenant(c.Request.Context(), id)
		},
	}
	rg.GET("/covenants", func(c *gin.Context) {
		loanId, ok := optionalIntQuery(c, "loan_id")
		if !ok {
			return
		}
		out, err := models.GetCovenants(c.Request.Context(), loanId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	})
	rg.GET("/covenants/:id", covenants.getHandler)
	rg.POST("/covenants", covenants.createHandler)
	rg.PUT("/covenants/:id", covenants.updateHandler)
	rg.DELETE("/covenants/:id", covenants.deleteHandler)
	rg.POST("/covenants/:id/test", recordCovenantTestHandler())
}

type covenantTestRequest struct {
	Value    decimal.Decimal `json:"value" binding:"required"`
	TestedAt *time.Time      `json:"tested_at"`
}

func recordCovenantTestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req covenantTestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		testedAt := time.Now().UTC()
		if req.TestedAt != nil {
			testedAt = req.TestedAt.UTC()
		}
		covenant, err := models.RecordCovenantTest(c.Request.Context(), id, req.Value, testedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": covenant})
	}
}
