package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betbot/predictbot/internal/history"
	"github.com/betbot/predictbot/internal/wallet"
	"github.com/betbot/predictbot/pkg/logger"
)

// Server exposes a read-only status API over the wallet store and the
// bet/claim history. It never returns private keys.
type Server struct {
	wallets *wallet.Store
	hist    *history.Store
	http    *http.Server
}

type Config struct {
	ListenAddr string
}

func New(cfg Config, wallets *wallet.Store, hist *history.Store) *Server {
	s := &Server{wallets: wallets, hist: hist}
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/wallets", s.handleWallets)
	api.GET("/bets", s.handleBets)
	api.GET("/claims", s.handleClaims)

	return r
}

// Run blocks until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	logger.Infof("状态查询服务监听 %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type walletView struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	BalanceBNB  string `json:"balance_bnb"`
	BalanceUSDT string `json:"balance_usdt"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleWallets(c *gin.Context) {
	list := s.wallets.List()
	out := make([]walletView, 0, len(list))
	for i, w := range list {
		out = append(out, walletView{
			Index:       i + 1,
			Name:        w.Name,
			Address:     w.Address,
			BalanceBNB:  w.BalanceBNB.String(),
			BalanceUSDT: w.BalanceUSDT.String(),
			CreatedAt:   w.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"wallets": out})
}

func (s *Server) handleBets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	bets, err := s.hist.ListBets(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

func (s *Server) handleClaims(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	claims, err := s.hist.ListClaims(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}
