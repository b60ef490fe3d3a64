package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"classroom-chat/internal/auth"
	"classroom-chat/internal/config"
	"classroom-chat/internal/db"
	grpchealth "classroom-chat/internal/grpc"
	"classroom-chat/internal/handlers"
	"classroom-chat/internal/leaderboard"
	"classroom-chat/internal/middleware"
	"classroom-chat/internal/observability"
	"classroom-chat/internal/questions"
	"classroom-chat/internal/rabbitmq"
	"classroom-chat/internal/realtime"
	"classroom-chat/internal/repositories"
	"classroom-chat/internal/session"
	"classroom-chat/internal/telemetry"
	"classroom-chat/internal/ws"
)

const (
	serviceName   = "classroom-chat"
	devTokenTTL   = 24 * time.Hour
	tokenCmdUsage = "usage: classroom-chat token <user_id> [role]"
)

// stores groups the repositories the service runs on.
type stores struct {
	rooms        repositories.RoomRepository
	participants repositories.ParticipantRepository
	messages     repositories.MessageRepository
	quiz         repositories.QuizRepository
	questions    repositories.QuestionRepository
	profiles     repositories.ProfileRepository
	ping         grpchealth.Check
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runTokenCommand(cfg, os.Args[2:], os.Stdout); err != nil {
			log.Fatalf("token: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Printf("tracing setup failed, continuing without: %v", err)
	}

	st, closeStore := openStores(cfg)
	defer closeStore()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	broker := newBroker(cfg, redisClient)
	defer broker.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditKey, serviceName, cfg.Environment)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	sessions := session.NewService(st.messages, st.rooms, st.participants, broker, session.Config{
		HistoryTimeout:   cfg.HistoryTimeout,
		SubscribeTimeout: cfg.SubscribeTimeout,
	})
	scores := leaderboard.NewService(st.quiz, redisClient, cfg.RedisPrefix, cfg.LeaderboardTTL)

	roomHandler := handlers.NewRoomHandler(st.rooms, st.participants, st.messages, sessions, audit)
	quizHandler := handlers.NewQuizHandler(scores)
	questionHandler := handlers.NewQuestionHandler(questions.NewService(st.questions))
	profileHandler := handlers.NewProfileHandler(st.profiles)
	roomWS := ws.NewRoomWebSocketHandler(sessions, st.rooms, verifier)

	router := gin.New()

	// middlewares
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/", middleware.AuthMiddleware(verifier))
	api.GET("/rooms", roomHandler.ListRooms)
	api.POST("/rooms", roomHandler.CreateRoom)
	api.GET("/rooms/:room_id", roomHandler.GetRoom)
	api.GET("/rooms/:room_id/messages", roomHandler.GetMessages)
	api.POST("/rooms/:room_id/messages", roomHandler.PostMessage)

	api.POST("/quiz-results", quizHandler.SaveResult)
	api.GET("/quiz-results/me", quizHandler.MyResults)
	api.GET("/leaderboard", quizHandler.Leaderboard)

	api.GET("/questions", questionHandler.ListQuestions)
	api.GET("/questions/random", questionHandler.RandomQuestions)
	api.POST("/questions", questionHandler.CreateQuestion)

	api.GET("/profile/me", profileHandler.GetMyProfile)
	api.POST("/profile/me", profileHandler.CreateMyProfile)
	api.PATCH("/profile/me", profileHandler.UpdateMyProfile)

	var counter handlers.SubscriberCounter
	if hub, ok := broker.(*realtime.Hub); ok {
		counter = hub
	}
	handlers.RegisterDebugRoutes(api, audit, counter, cfg.DebugRoutes)

	// The websocket route authenticates itself: browsers cannot set headers on upgrade.
	router.GET("/ws/rooms/:room_id", roomWS.Handle)

	checks := map[string]grpchealth.Check{"store": st.ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	health := grpchealth.NewHealthServer(checks, 0)
	go func() {
		if err := health.ListenAndServe(cfg.GRPCHealthAddr); err != nil {
			log.Printf("grpc health server error: %v", err)
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("http listening addr=%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	health.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}
}

func openStores(cfg config.Config) (stores, func()) {
	if cfg.UseMemoryStore() {
		log.Printf("using in-memory store")
		mem := repositories.NewMemoryStore()
		return stores{
			rooms:        mem,
			participants: mem,
			messages:     mem,
			quiz:         mem,
			questions:    mem,
			profiles:     mem,
			ping:         func(context.Context) error { return nil },
		}, func() {}
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	return stores{
		rooms:        repositories.NewRoomRepo(database),
		participants: repositories.NewParticipantRepo(database),
		messages:     repositories.NewMessageRepo(database),
		quiz:         repositories.NewQuizRepo(database),
		questions:    repositories.NewQuestionRepo(database),
		profiles:     repositories.NewProfileRepo(database),
		ping:         pingDB(database),
	}, func() { database.Close() }
}

func pingDB(database *sqlx.DB) grpchealth.Check {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return database.PingContext(ctx)
	}
}

func newBroker(cfg config.Config, client *redis.Client) realtime.Broker {
	if cfg.RealtimeBackend == config.RealtimeRedis {
		log.Printf("realtime backend=redis addr=%s", cfg.RedisAddr)
		return realtime.NewRedisBroker(client, cfg.RedisPrefix)
	}
	log.Printf("realtime backend=memory")
	return realtime.NewHub()
}

// runTokenCommand prints a bearer token signed with the configured secret so
// local clients can reach the API without an identity provider.
func runTokenCommand(cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "" || len(args) > 2 {
		return errors.New(tokenCmdUsage)
	}
	role := ""
	if len(args) == 2 {
		role = args[1]
	}
	token, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer).Issue(args[0], role, devTokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
