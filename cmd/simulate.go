package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-gateway/internal/payment"
)

var (
	simulateTarget     string
	simulateRPS        int
	simulateCount      int
	simulateMerchantID string
	simulateToken      string
	simulateReplayRate float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send fake payments to a running gateway",
	Long:  `Generate card payments with random data and POST them to the gateway, optionally reusing idempotency keys to exercise replays`,
	RunE:  runSimulation,
}

var (
	authorizedColor = color.New(color.FgGreen)
	refusedColor    = color.New(color.FgYellow)
	replayedColor   = color.New(color.FgCyan)
	failedColor     = color.New(color.FgRed)
)

type simulatedPayment struct {
	CardNumber  string         `json:"card_number"`
	MerchantID  string         `json:"merchant_id"`
	ExpiryMonth int            `json:"expiry_month"`
	ExpiryYear  int            `json:"expiry_year"`
	Currency    string         `json:"currency"`
	Amount      payment.Amount `json:"amount"`
	CVV         int            `json:"cvv"`
}

type simulator struct {
	client *http.Client
	target string
	token  string

	mu   sync.Mutex
	sent []string
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTarget, "target", "http://localhost:8080/payments", "payments endpoint")
	simulateCmd.Flags().IntVar(&simulateRPS, "rps", 5, "requests per second")
	simulateCmd.Flags().IntVarP(&simulateCount, "count", "n", 0, "stop after n requests (0 runs until interrupted)")
	simulateCmd.Flags().StringVar(&simulateMerchantID, "merchant", "merchant-demo", "merchant id to submit as")
	simulateCmd.Flags().StringVar(&simulateToken, "token", "", "bearer token when merchant auth is enabled")
	simulateCmd.Flags().Float64Var(&simulateReplayRate, "replay-rate", 0.1, "share of requests that reuse an earlier idempotency key")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	if simulateRPS <= 0 {
		return fmt.Errorf("rps must be positive")
	}

	sim := &simulator{
		client: &http.Client{Timeout: 30 * time.Second},
		target: simulateTarget,
		token:  simulateToken,
	}

	fmt.Printf("Starting simulation: target=%s rps=%d\n", simulateTarget, simulateRPS)

	ticker := time.NewTicker(time.Second / time.Duration(simulateRPS))
	defer ticker.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for sent := 0; simulateCount == 0 || sent < simulateCount; sent++ {
		select {
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				sim.send(ctx)
			}()
		case <-ctx.Done():
			fmt.Println("Shutting down simulation...")
			wg.Wait()
			return nil
		}
	}

	wg.Wait()
	return nil
}

func (s *simulator) nextKey() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sent) > 0 && rand.Float64() < simulateReplayRate {
		return s.sent[rand.Intn(len(s.sent))], true
	}
	key := uuid.NewString()
	s.sent = append(s.sent, key)
	return key, false
}

func fakePayment(merchantID string) simulatedPayment {
	now := time.Now()
	return simulatedPayment{
		CardNumber:  faker.CCNumber(),
		MerchantID:  merchantID,
		ExpiryMonth: rand.Intn(12) + 1,
		ExpiryYear:  now.Year() + 1 + rand.Intn(4),
		Currency:    payment.AllowedCurrencies[rand.Intn(len(payment.AllowedCurrencies))],
		Amount:      payment.NewAmount(decimal.New(int64(rand.Intn(100000)+1), -2)),
		CVV:         100 + rand.Intn(900),
	}
}

func (s *simulator) send(ctx context.Context) {
	key, reused := s.nextKey()

	body, err := json.Marshal(fakePayment(simulateMerchantID))
	if err != nil {
		failedColor.Printf("ERROR marshal request: %v\n", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target, bytes.NewReader(body))
	if err != nil {
		failedColor.Printf("ERROR build request: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.IdempotencyKeyHeader, key)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		failedColor.Printf("ERROR send request: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var outcome payment.PaymentOutcome
	_ = json.NewDecoder(resp.Body).Decode(&outcome)

	switch {
	case resp.Header.Get(payment.ReplayedHeader) == "true":
		replayedColor.Printf("REPLAY  %d key=%s id=%s status=%s\n", resp.StatusCode, key, outcome.ID, outcome.Status)
	case resp.StatusCode == http.StatusOK:
		authorizedColor.Printf("OK      %d key=%s id=%s status=%s\n", resp.StatusCode, key, outcome.ID, outcome.Status)
	case resp.StatusCode == http.StatusBadRequest && outcome.Status != "":
		refusedColor.Printf("REFUSED %d key=%s id=%s status=%s\n", resp.StatusCode, key, outcome.ID, outcome.Status)
	default:
		failedColor.Printf("FAILED  %d key=%s reused=%t\n", resp.StatusCode, key, reused)
	}
}
