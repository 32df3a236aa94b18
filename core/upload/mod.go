// Package upload places a large payload on the ledger as a file.
//
// A single transaction cannot carry more than a few kilobytes, so the payload
// is planned in chunks of MaxChunkSize bytes. The first chunk creates the file
// and the remaining chunks are appended one after the other, each append
// waiting for the receipt of the previous one. The content of the file is
// defined by the order of the appends, therefore they are never parallelized.
//
// A failure aborts the upload and is returned to the caller. The file created
// so far is left as is on the ledger.
package upload

import (
	"time"

	"github.com/indemnify/cman"
	"github.com/indemnify/cman/core/chunk"
	"github.com/indemnify/cman/core/ledger"
	"github.com/indemnify/cman/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

const (
	// MaxChunkSize is the maximum number of bytes carried by a single create or
	// append transaction.
	MaxChunkSize = 5000

	// DefaultExpiration is the lifetime of the file from its creation.
	DefaultExpiration = 7_890_000 * time.Second
)

// DefaultMaxFee is the maximum fee paid for each create or append.
var DefaultMaxFee = ledger.Hbar(5)

var (
	promFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cman_upload_files_total",
		Help: "total number of files created",
	})

	promChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cman_upload_chunks_appended_total",
		Help: "total number of chunks appended to files",
	})

	promBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cman_upload_bytes_total",
		Help: "total number of bytes uploaded",
	})
)

func init() {
	cman.PromCollectors = append(cman.PromCollectors, promFiles, promChunks, promBytes)
}

// Uploader creates files on the ledger from payloads of any size.
type Uploader struct {
	client     ledger.Client
	maxFee     ledger.Amount
	expiration time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// Option is the type of options to create an uploader.
type Option func(*Uploader)

// WithMaxFee sets the maximum fee for each transaction of the upload.
func WithMaxFee(fee ledger.Amount) Option {
	return func(u *Uploader) {
		u.maxFee = fee
	}
}

// WithExpiration sets the lifetime of the files.
func WithExpiration(d time.Duration) Option {
	return func(u *Uploader) {
		u.expiration = d
	}
}

// NewUploader returns a new uploader that sends the transactions with the
// client. The files are owned by the operator key of the client.
func NewUploader(client ledger.Client, opts ...Option) Uploader {
	u := Uploader{
		client:     client,
		maxFee:     DefaultMaxFee,
		expiration: DefaultExpiration,
		now:        time.Now,
		logger:     cman.Logger.With().Str("component", "upload").Logger(),
	}

	for _, opt := range opts {
		opt(&u)
	}

	return u
}

// Upload creates a file with the payload and returns its identifier once every
// chunk has been confirmed.
func (u Uploader) Upload(payload []byte) (ledger.FileID, error) {
	chunks, err := chunk.Plan(payload, MaxChunkSize)
	if err != nil {
		return ledger.FileID{}, xerrors.Errorf("failed to plan chunks: %w", err)
	}

	operator := u.client.GetOperator()

	create := ledger.FileCreate{
		Contents:       chunks[0].Bytes(payload),
		Keys:           []crypto.PublicKey{operator.PublicKey},
		ExpirationTime: u.now().Add(u.expiration),
		MaxFee:         u.maxFee,
	}

	receipt, err := ledger.Execute(u.client, create)
	if err != nil {
		return ledger.FileID{}, xerrors.Errorf("failed to create file: %w", err)
	}

	if receipt.FileID == nil {
		return ledger.FileID{}, xerrors.Errorf("receipt of %v is missing the file", receipt.TransactionID)
	}

	fileID := *receipt.FileID

	promFiles.Inc()
	promBytes.Add(float64(chunks[0].Length))

	u.logger.Debug().
		Stringer("file", fileID).
		Int("size", len(payload)).
		Int("chunks", len(chunks)).
		Msg("file created")

	for i, c := range chunks[1:] {
		tx := ledger.FileAppend{
			FileID:   fileID,
			Contents: c.Bytes(payload),
			MaxFee:   u.maxFee,
		}

		_, err = ledger.Execute(u.client, tx)
		if err != nil {
			return ledger.FileID{}, xerrors.Errorf("failed to append chunk %d/%d to %v: %w",
				i+2, len(chunks), fileID, err)
		}

		promChunks.Inc()
		promBytes.Add(float64(c.Length))

		u.logger.Debug().
			Stringer("file", fileID).
			Int("chunk", i+2).
			Int("length", c.Length).
			Msg("chunk appended")
	}

	return fileID, nil
}
