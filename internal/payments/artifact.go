package payments

import (
	"fmt"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
)

// Artifact carries what the buyer needs to actually pay an order. Each
// method fills only the fields it requires.
type Artifact struct {
	Method          enums.PaymentMethod `json:"method"`
	BankInfo        *BankTransferInfo   `json:"bank_info,omitempty"`
	TransferContent string              `json:"transfer_content,omitempty"`
	QRCodeURL       string              `json:"qr_code_url,omitempty"`
	PaymentURL      string              `json:"payment_url,omitempty"`
}

// BankTransferInfo identifies the receiving account for manual transfers.
type BankTransferInfo struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

// ArtifactConfig holds the static payment rails used to build artifacts.
type ArtifactConfig struct {
	BankName       string
	BankAccount    string
	BankHolder     string
	GatewayBaseURL string
	QRBaseURL      string
}

// CreateArtifact builds the payment instructions for one order and method.
// Bank transfers need the configured receiving account; e-wallets need the
// QR base; the gateway needs its checkout base URL.
func CreateArtifact(cfg ArtifactConfig, order *models.PaymentOrder, method enums.PaymentMethod) (*Artifact, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment order required")
	}
	switch method {
	case enums.PaymentMethodBankTransfer:
		if cfg.BankName == "" || cfg.BankAccount == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "bank transfer rail is not configured")
		}
		return &Artifact{
			Method: method,
			BankInfo: &BankTransferInfo{
				BankName:      cfg.BankName,
				AccountNumber: cfg.BankAccount,
				AccountHolder: cfg.BankHolder,
			},
			TransferContent: order.OrderCode,
		}, nil
	case enums.PaymentMethodEWallet:
		if cfg.QRBaseURL == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "e-wallet rail is not configured")
		}
		return &Artifact{
			Method:          method,
			QRCodeURL:       fmt.Sprintf("%s/%s.png", cfg.QRBaseURL, order.OrderCode),
			TransferContent: order.OrderCode,
		}, nil
	case enums.PaymentMethodGateway:
		if cfg.GatewayBaseURL == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway rail is not configured")
		}
		return &Artifact{
			Method:     method,
			PaymentURL: fmt.Sprintf("%s/checkout/%s", cfg.GatewayBaseURL, order.OrderCode),
		}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
}
