package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/InfradynAB/procure-sdk/modules/procurement/domain/instruction"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

// InstructionService files client instructions, the authorization records a
// change order points back to. The attachment reference is mandatory: an
// instruction without its document has no legal weight.
type InstructionService struct {
	instructions instruction.Repository
	audit        AuditRecorder
}

func NewInstructionService(instructions instruction.Repository, audit AuditRecorder) *InstructionService {
	return &InstructionService{instructions: instructions, audit: audit}
}

type CreateClientInstructionInput struct {
	ProjectID     uuid.UUID
	Reference     string
	Kind          string
	Title         string
	AttachmentRef string
}

func (s *InstructionService) CreateClientInstruction(ctx context.Context, in CreateClientInstructionInput) (*instruction.ClientInstruction, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, errNoActor(err)
	}
	if in.ProjectID == uuid.Nil {
		return nil, errInvalidBody("project_id is required")
	}
	if strings.TrimSpace(in.Reference) == "" {
		return nil, errInvalidBody("reference is required")
	}
	if strings.TrimSpace(in.AttachmentRef) == "" {
		return nil, errInvalidBody("attachment_ref is required")
	}
	switch in.Kind {
	case instruction.KindSiteInstruction, instruction.KindArchitectInstruction, instruction.KindEmailVariation:
	default:
		return nil, errInvalidBody("kind must be one of SITE_INSTRUCTION, ARCHITECT_INSTRUCTION, EMAIL_VARIATION")
	}

	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*instruction.ClientInstruction, error) {
		tenantID, err := composables.UseTenantID(txCtx)
		if err != nil {
			return nil, errInvalidBody("tenant is required")
		}

		ci, err := s.instructions.Insert(txCtx, &instruction.ClientInstruction{
			TenantID:      tenantID,
			ProjectID:     in.ProjectID,
			Reference:     strings.TrimSpace(in.Reference),
			Kind:          in.Kind,
			Title:         strings.TrimSpace(in.Title),
			AttachmentRef: strings.TrimSpace(in.AttachmentRef),
			Status:        instruction.StatusPendingEstimate,
			CreatedBy:     actorID,
		})
		if err != nil {
			return nil, mapPgError(err)
		}

		if err := s.audit.Record(txCtx, AuditLogInsert{
			ActorID:    actorID,
			Action:     ActionClientInstructionCreated,
			EntityType: "client_instruction",
			EntityID:   ci.ID,
			Metadata: map[string]any{
				"reference": ci.Reference,
				"kind":      ci.Kind,
			},
			At: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return ci, nil
	})
}

func (s *InstructionService) GetClientInstruction(ctx context.Context, id uuid.UUID) (*instruction.ClientInstruction, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*instruction.ClientInstruction, error) {
		ci, err := s.instructions.GetByID(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		return ci, nil
	})
}
