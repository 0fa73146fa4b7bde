package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aqualedger/internal/config"
	"aqualedger/internal/domain/models"
	"aqualedger/internal/lib/jwt"
	"aqualedger/internal/lib/timewindow"
	"aqualedger/internal/storage"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Storage is the persistence handle the server is constructed with.
type Storage interface {
	SaveUser(ctx context.Context, name, email string, passHash []byte) (int, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveCatch(ctx context.Context, c models.Catch) (*models.Catch, error)
	CatchesByUser(ctx context.Context, userID int) ([]models.Catch, error)
	UpdateCatch(ctx context.Context, userID, catchID int, params storage.UpdateCatchParams) (*models.Catch, error)
	DeleteCatch(ctx context.Context, userID, catchID int) error
	SummarizeCatches(ctx context.Context, userID int, dayStart, dayEnd, weekStart time.Time) (*models.Summary, error)
}

type userIDKey struct{}

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	storage   Storage
	jwtSecret []byte
}

func New(config *config.Config, logger *slog.Logger, storage Storage, jwtSecret []byte) *APIServer {
	return &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr: config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
		},
		storage:   storage,
		jwtSecret: jwtSecret,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	s.configureRouter()

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.HandleFunc("/", s.indexHandler()).Methods("GET")
	router.HandleFunc("/register", s.registerHandler()).Methods("POST")
	router.HandleFunc("/login", s.loginHandler()).Methods("POST")
	router.HandleFunc("/catches", s.authenticate(s.addCatchHandler())).Methods("POST")
	router.HandleFunc("/catches", s.authenticate(s.listCatchesHandler())).Methods("GET")
	router.HandleFunc("/catches/{id:[0-9]+}", s.authenticate(s.updateCatchHandler())).Methods("PUT")
	router.HandleFunc("/catches/{id:[0-9]+}", s.authenticate(s.deleteCatchHandler())).Methods("DELETE")
	router.HandleFunc("/summary", s.authenticate(s.summaryHandler())).Methods("GET")
	s.server.Handler = router
}

func (s *APIServer) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *APIServer) respondMessage(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"message": msg})
}

// authenticate verifies the bearer token and stores the caller's user id in
// the request context. Every request is verified independently; no session
// state survives between requests.
func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			s.respondMessage(w, http.StatusUnauthorized, "Token missing")
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondMessage(w, http.StatusUnauthorized, "Invalid token format")
			return
		}

		userID, err := jwt.ParseUserID(parts[1], string(s.jwtSecret))
		if err != nil {
			s.respondMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID))
		next(w, r)
	}
}

func userIDFromContext(ctx context.Context) int {
	id, _ := ctx.Value(userIDKey{}).(int)
	return id
}

func (s *APIServer) indexHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondMessage(w, http.StatusOK, "Welcome to Aqua Ledger API")
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Name == "" || req.Email == "" || req.Password == "" {
			s.respondMessage(w, http.StatusBadRequest, "Name, email, and password are required.")
			return
		}

		passHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.logger.Error("Failed to hash password", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		if _, err := s.storage.SaveUser(r.Context(), req.Name, req.Email, passHash); err != nil {
			if errors.Is(err, storage.ErrEmailTaken) {
				s.respondMessage(w, http.StatusConflict, "User with this email already exists.")
				return
			}
			s.logger.Error("Failed to save user", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Registration failed")
			return
		}

		s.logger.Info("Registered new user", slog.String("email", req.Email))
		s.respondMessage(w, http.StatusCreated, "User "+req.Name+" registered successfully.")
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

type LoginUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" {
			s.respondMessage(w, http.StatusBadRequest, "Email and password required")
			return
		}

		// A missing user and a wrong password produce the same response so
		// the endpoint cannot be used to enumerate registered emails.
		user, err := s.storage.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			if !errors.Is(err, storage.ErrUserNotFound) {
				s.logger.Error("Failed to look up user", "error", err)
				s.respondMessage(w, http.StatusInternalServerError, "Login failed")
				return
			}
			s.respondMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			s.respondMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		token, err := jwt.NewToken(user, string(s.jwtSecret), s.config.Jwt.TokenTTL)
		if err != nil {
			s.logger.Error("Failed to issue token", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Login failed")
			return
		}

		s.respond(w, http.StatusOK, LoginResponse{
			Token: token,
			User:  LoginUser{Name: user.Name, Email: user.Email},
		})
	}
}

type AddCatchRequest struct {
	Species    string  `json:"species"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Buyer      string  `json:"buyer"`
	PaymentRef string  `json:"payment_ref"`
}

type CatchResponse struct {
	ID         int       `json:"id"`
	Species    string    `json:"species"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Buyer      string    `json:"buyer"`
	Date       time.Time `json:"date"`
	PaymentRef string    `json:"payment_ref,omitempty"`
}

func toCatchResponse(c *models.Catch) CatchResponse {
	return CatchResponse{
		ID:         c.ID,
		Species:    c.Species,
		Quantity:   c.Quantity,
		Price:      c.Price,
		Buyer:      c.Buyer,
		Date:       c.Date,
		PaymentRef: c.PaymentRef,
	}
}

func (s *APIServer) addCatchHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		var req AddCatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		// Zero quantity and zero price count as missing.
		if req.Species == "" || req.Quantity <= 0 || req.Price <= 0 || req.Buyer == "" {
			s.respondMessage(w, http.StatusBadRequest, "All fields (species, quantity, price, buyer) are required.")
			return
		}

		created, err := s.storage.SaveCatch(r.Context(), models.Catch{
			UserID:     userID,
			Species:    req.Species,
			Quantity:   req.Quantity,
			Price:      req.Price,
			Buyer:      req.Buyer,
			Date:       time.Now().UTC(),
			PaymentRef: req.PaymentRef,
		})
		if err != nil {
			s.logger.Error("Failed to save catch", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Failed to save catch")
			return
		}

		s.logger.Info("Catch recorded",
			slog.Int("user_id", userID),
			slog.String("species", created.Species),
		)
		s.respond(w, http.StatusCreated, toCatchResponse(created))
	}
}

type ListCatchesResponse struct {
	Catches []CatchResponse `json:"catches"`
}

func (s *APIServer) listCatchesHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		catches, err := s.storage.CatchesByUser(r.Context(), userID)
		if err != nil {
			s.logger.Error("Failed to list catches", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Failed to list catches")
			return
		}

		res := ListCatchesResponse{Catches: make([]CatchResponse, 0, len(catches))}
		for i := range catches {
			res.Catches = append(res.Catches, toCatchResponse(&catches[i]))
		}
		s.respond(w, http.StatusOK, res)
	}
}

type UpdateCatchRequest struct {
	Species  *string  `json:"species"`
	Quantity *int     `json:"quantity"`
	Price    *float64 `json:"price"`
	Buyer    *string  `json:"buyer"`
}

func (s *APIServer) updateCatchHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		catchID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			s.respondMessage(w, http.StatusNotFound, "Catch not found or not authorized")
			return
		}

		var req UpdateCatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		_, err = s.storage.UpdateCatch(r.Context(), userID, catchID, storage.UpdateCatchParams{
			Species:  req.Species,
			Quantity: req.Quantity,
			Price:    req.Price,
			Buyer:    req.Buyer,
		})
		if err != nil {
			if errors.Is(err, storage.ErrCatchNotFound) {
				s.respondMessage(w, http.StatusNotFound, "Catch not found or not authorized")
				return
			}
			s.logger.Error("Failed to update catch", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Failed to update catch")
			return
		}

		s.respondMessage(w, http.StatusOK, "Catch updated successfully.")
	}
}

func (s *APIServer) deleteCatchHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		catchID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			s.respondMessage(w, http.StatusNotFound, "Catch not found or not authorized")
			return
		}

		if err := s.storage.DeleteCatch(r.Context(), userID, catchID); err != nil {
			if errors.Is(err, storage.ErrCatchNotFound) {
				s.respondMessage(w, http.StatusNotFound, "Catch not found or not authorized")
				return
			}
			s.logger.Error("Failed to delete catch", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Failed to delete catch")
			return
		}

		s.respondMessage(w, http.StatusOK, "Catch deleted.")
	}
}

func (s *APIServer) summaryHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		now := time.Now().UTC()
		dayStart, dayEnd := timewindow.DayWindow(now)
		weekStart := timewindow.WeekStart(now)

		sum, err := s.storage.SummarizeCatches(r.Context(), userID, dayStart, dayEnd, weekStart)
		if err != nil {
			s.logger.Error("Failed to summarize catches", "error", err)
			s.respondMessage(w, http.StatusInternalServerError, "Failed to summarize catches")
			return
		}

		s.respond(w, http.StatusOK, sum)
	}
}
