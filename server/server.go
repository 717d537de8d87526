package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ordmarketorg/libordmarket-go/config"
	"github.com/ordmarketorg/libordmarket-go/fee"
	"github.com/ordmarketorg/libordmarket-go/listing"
	"github.com/ordmarketorg/libordmarket-go/network"
	"github.com/ordmarketorg/libordmarket-go/payout"
	"github.com/ordmarketorg/libordmarket-go/purchase"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv(config.DefaultConfig(), envMap())
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := listing.OpenBoltStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	chain := network.NewEsploraClient(cfg.EsploraURL, cfg.Params(), 0)
	oracle := fee.NewOracle(cfg.FeeOracleURL, cfg.FallbackFeeRate, cfg.FeeOracleTimeout)

	flow := &purchase.Flow{Store: store, Chain: chain, Oracle: oracle, Cfg: cfg}
	engine := &payout.Engine{
		Snapshot: payout.NewSnapshotClient(cfg.EsploraURL, 0),
		Chain:    chain,
		Oracle:   oracle,
		Cfg:      cfg,
	}
	if v := os.Getenv("ORDMARKET_HOLDER_INDEXER_URL"); v != "" {
		engine.Snapshot = payout.NewSnapshotClient(v, 0)
	}

	r := gin.Default()
	registerRoutes(r, store, flow, engine)

	log.Printf("listening on %s (%s)", cfg.ListenAddr, cfg.Network)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func registerRoutes(r *gin.Engine, store listing.Store, flow *purchase.Flow, engine *payout.Engine) {
	r.POST("/api/listings", createListing(store))
	r.GET("/api/listings", listListings(store))
	r.GET("/api/listings/:id", getListing(store))
	r.POST("/api/listings/:id/purchase", purchaseListing(flow))
	r.POST("/api/listings/:id/complete", completeListing(flow))
	r.POST("/api/listings/:id/cancel", cancelListing(flow))
	r.POST("/api/payouts", runPayout(engine))
}

type createListingRequest struct {
	ID                string `json:"id"`
	InscriptionID     string `json:"inscription_id" binding:"required"`
	SellerWallet      string `json:"seller_wallet" binding:"required"`
	PriceSats         uint64 `json:"price_sats" binding:"required"`
	PlatformFeeSats   uint64 `json:"platform_fee_sats"`
	PlatformFeeWallet string `json:"platform_fee_wallet" binding:"required"`
	UtxoValue         uint64 `json:"utxo_value"`
	PSBT              string `json:"psbt" binding:"required"`
}

func createListing(store listing.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createListingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.ID == "" {
			req.ID = req.InscriptionID
		}

		l := &listing.Listing{
			ID:                req.ID,
			InscriptionID:     req.InscriptionID,
			SellerWallet:      req.SellerWallet,
			PriceSats:         req.PriceSats,
			PlatformFeeSats:   req.PlatformFeeSats,
			PlatformFeeWallet: req.PlatformFeeWallet,
			UtxoValue:         req.UtxoValue,
			PartialPSBT:       req.PSBT,
			Status:            listing.StatusActive,
			CreatedAt:         time.Now().UTC(),
		}

		// The signed template must match the listed terms before it is
		// accepted; a mismatch here would poison every later purchase.
		tpl, err := purchase.ExtractSellerTemplate(req.PSBT)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tpl.ValidateListing(l); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		if err := store.Put(l); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, l)
	}
}

func listListings(store listing.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := listing.Status(c.DefaultQuery("status", string(listing.StatusActive)))
		ls, err := store.List(status)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"listings": ls})
	}
}

func getListing(store listing.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, err := store.Get(c.Param("id"))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

type purchaseRequest struct {
	OrdinalAddress string `json:"ordinal_address" binding:"required"`
	PaymentAddress string `json:"payment_address" binding:"required"`
}

func purchaseListing(flow *purchase.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req purchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := flow.Purchase(c.Request.Context(), c.Param("id"),
			req.OrdinalAddress, req.PaymentAddress)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type completeRequest struct {
	RawTx string `json:"raw_tx" binding:"required"`
}

func completeListing(flow *purchase.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		txid, err := flow.CompleteSale(c.Request.Context(), c.Param("id"), req.RawTx)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"txid": txid})
	}
}

func cancelListing(flow *purchase.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := flow.Cancel(c.Param("id")); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(listing.StatusCancelled)})
	}
}

type payoutRequest struct {
	CollectionID   string `json:"collection_id" binding:"required"`
	TotalSupply    uint64 `json:"total_supply" binding:"required"`
	PoolSats       uint64 `json:"pool_sats" binding:"required"`
	FundingAddress string `json:"funding_address" binding:"required"`
	ChangeAddress  string `json:"change_address" binding:"required"`
	Exclude        bool   `json:"exclude_below_dust"`
}

// runPayout produces a reviewable payout draft. Keys never reach the server;
// signing happens wherever the funding wallet lives.
func runPayout(engine *payout.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		policy := payout.CarryForward
		if req.Exclude {
			policy = payout.Exclude
		}
		res, err := engine.Run(c.Request.Context(), payout.RunParams{
			CollectionID:   req.CollectionID,
			TotalSupply:    req.TotalSupply,
			PoolSats:       req.PoolSats,
			FundingAddress: req.FundingAddress,
			ChangeAddress:  req.ChangeAddress,
			Policy:         policy,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// statusFor maps sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, listing.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, listing.ErrDuplicateListing):
		return http.StatusConflict
	case errors.Is(err, listing.ErrStatusConflict),
		errors.Is(err, purchase.ErrListingNotActive):
		return http.StatusConflict
	case errors.Is(err, purchase.ErrSignedTemplateMismatch),
		errors.Is(err, purchase.ErrInvalidTemplate),
		errors.Is(err, listing.ErrInvalidListing),
		errors.Is(err, payout.ErrInvalidAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, purchase.ErrInsufficientBalance),
		errors.Is(err, purchase.ErrInsufficientValue),
		errors.Is(err, utxo.ErrInsufficientFunds),
		errors.Is(err, utxo.ErrNeedPadding),
		errors.Is(err, payout.ErrInsufficientFunding):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// envMap snapshots the process environment for the config overlay.
func envMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}
