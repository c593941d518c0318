package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/yizeng/gab/gin/gorm/ticketing/docs"
	v1 "github.com/yizeng/gab/gin/gorm/ticketing/internal/api/handler/v1"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api/middleware"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/config"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

// Services is everything the HTTP layer calls into.
type Services struct {
	Transactions *service.TransactionService
	Decisions    *service.DecisionService
	Points       *service.PointsService
	Referrals    *service.ReferralService
}

func NewServer(conf *config.AppConfig, svc Services) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	transactionHandler := v1.NewTransactionHandler(svc.Transactions, svc.Decisions)
	userHandler := v1.NewUserHandler(svc.Points, svc.Referrals)
	s.MountHandlers(transactionHandler, userHandler)

	return s
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(transactionHandler *v1.TransactionHandler, userHandler *v1.UserHandler) {
	const basePath = "/api/v1"

	authenticated := middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT()

	transactions := s.Router.Group(basePath+"/transactions", authenticated)
	{
		transactions.POST("", transactionHandler.HandleCreateTransaction)
		transactions.GET("", transactionHandler.HandleListTransactions)
		transactions.GET("/:transactionID", transactionHandler.HandleGetTransaction)
		transactions.POST("/:transactionID/payment-proof", transactionHandler.HandleUploadPaymentProof)
		transactions.POST("/:transactionID/cancel", transactionHandler.HandleCancelTransaction)
		transactions.POST("/:transactionID/decision", middleware.RequireRole(domain.RoleOrganizer), transactionHandler.HandleDecision)
	}

	users := s.Router.Group(basePath+"/users/me", authenticated)
	{
		users.GET("/points", userHandler.HandleGetPoints)
		users.POST("/referral", userHandler.HandleResolveReferral)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	if s.Config.Metrics.Enabled {
		s.Router.GET(s.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Ticketing API"
	docs.SwaggerInfo.Description = "Ticket booking with seat, discount and points ledgers."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
