package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/expansionAgency/whatshub/internal/config"
	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/store"
)

// seedConversations is a small demo dataset for local development.
var seedConversations = []struct {
	address string
	name    string
	turns   []struct {
		sender string
		body   string
	}
}{
	{
		address: "5551979312345@s.whatsapp.net",
		name:    "Maria Silva",
		turns: []struct{ sender, body string }{
			{domain.SenderContact, "Oi, vocês têm horário amanhã?"},
			{domain.SenderOperator, "Olá Maria! Temos às 14h e às 16h."},
			{domain.SenderContact, "Pode ser às 14h, obrigada!"},
		},
	},
	{
		address: "5511988887777@s.whatsapp.net",
		name:    "Carlos Pereira",
		turns: []struct{ sender, body string }{
			{domain.SenderContact, "Bom dia, queria um orçamento."},
			{domain.SenderOperator, "Bom dia Carlos, te envio em instantes."},
		},
	},
	{
		address: "5521999990000@s.whatsapp.net",
		name:    "",
		turns: []struct{ sender, body string }{
			{domain.SenderContact, "Olá!"},
		},
	},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the store with demo conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			dsn := cfg.Store.DSN
			if cfg.Store.Driver == "sqlite" && dsn == "" {
				dsn = filepath.Join(paths.Data, "whatshub.db")
			}
			db, err := store.Open(cfg.Store.Driver, dsn, log)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer db.Close()

			ctx := context.Background()
			base := time.Now().Add(-2 * time.Hour)
			total := 0

			for i, conv := range seedConversations {
				var last domain.Message
				for j, turn := range conv.turns {
					msg := domain.Message{
						ID:         uuid.NewString(),
						RawAddress: conv.address,
						Sender:     turn.sender,
						Body:       turn.body,
						Timestamp:  base.Add(time.Duration(i)*20*time.Minute + time.Duration(j)*2*time.Minute),
					}
					if turn.sender == domain.SenderContact && conv.name != "" {
						msg.Sender = conv.name
					}
					if err := db.InsertMessage(ctx, msg); err != nil {
						return err
					}
					last = msg
					total++
				}

				name := conv.name
				if name == "" {
					name = "Contato"
				}
				if err := db.UpsertConversation(ctx, domain.ConversationSummary{
					ID:              "whatsapp_" + digitsBefore(conv.address),
					DisplayName:     name,
					LastMessageBody: last.Body,
					LastMessageAt:   last.Timestamp,
				}); err != nil {
					return err
				}
			}

			fmt.Printf("Seeded %d messages across %d conversations\n", total, len(seedConversations))
			return nil
		},
	}
}

func digitsBefore(address string) string {
	out := make([]rune, 0, len(address))
	for _, r := range address {
		if r == '@' {
			break
		}
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}
