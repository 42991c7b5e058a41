// Package api exposes the daemon service over a local JSON-RPC 2.0
// endpoint, plus the Prometheus scrape and health surfaces.
package api

import (
	"context"

	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/app"
	"github.com/AbhaySingh6921/carbon-SIH-Project/internal/workflow"
	"github.com/AbhaySingh6921/carbon-SIH-Project/pkg/models"
)

// DaemonService is the operation surface the RPC layer dispatches into.
// *app.Service implements it.
type DaemonService interface {
	Connect(ctx context.Context, prompt bool) (models.SessionInfo, error)
	Disconnect()
	Session() models.SessionInfo

	SubmitProject(ctx context.Context, sub workflow.Submission) (app.SubmitReceipt, error)
	Plantations(ctx context.Context) ([]models.Plantation, error)
	Plantation(ctx context.Context, id uint64) (models.Plantation, error)
	MyPlantations(ctx context.Context) ([]models.Plantation, error)

	NGOs(ctx context.Context) ([]models.NGO, error)
	NGO(ctx context.Context, address string) (models.NGO, error)
	WhitelistNGO(ctx context.Context, address, name, country string) error
	SetNGOStatus(ctx context.Context, address string, status models.NGOStatus) error

	VerifyPlantation(ctx context.Context, id uint64, approved bool) error
	TransferAdmin(ctx context.Context, newAdmin string) error
	Reputation(ctx context.Context, address string) (models.Reputation, error)

	RequestScore(ctx context.Context, projectID uint64) error
	Score(ctx context.Context, projectID uint64) (models.ScoreEvent, error)
	Scores() []models.ScoreEvent

	Events(fromSeq int64) []app.NotificationEvent
	Metrics() models.MetricsSnapshot
}
