package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Manage channel resources and their daily limits",
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's resources with remaining capacity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tenant, _ := cmd.Flags().GetString("tenant")
		channelFlag, _ := cmd.Flags().GetString("channel")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		channels := []model.Channel{model.ChannelEmail, model.ChannelLinkedIn, model.ChannelSMS, model.ChannelVoice}
		if channelFlag != "" {
			channels = []model.Channel{model.Channel(channelFlag)}
		}

		today := time.Now().UTC().Format(model.UsageDayFormat)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCHANNEL\tIDENTITY\tSTATUS\tLIMIT\tUSED\tREMAINING")
		for _, ch := range channels {
			resources, err := st.ListResources(ctx, tenant, ch)
			if err != nil {
				return eris.Wrapf(err, "resources: list %s", ch)
			}
			for _, r := range resources {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.Channel, r.Identity, r.Status,
					r.DailyLimit, r.UsedToday, r.Remaining(today),
				)
			}
		}
		w.Flush()
		return nil
	},
}

var resourcesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a channel resource",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tenant, _ := cmd.Flags().GetString("tenant")
		channelFlag, _ := cmd.Flags().GetString("channel")
		identity, _ := cmd.Flags().GetString("identity")
		limit, _ := cmd.Flags().GetInt("limit")

		channel := model.Channel(channelFlag)
		switch channel {
		case model.ChannelEmail, model.ChannelLinkedIn, model.ChannelSMS, model.ChannelVoice:
		default:
			return eris.Errorf("resources: unknown channel %q", channelFlag)
		}
		if limit < 1 {
			return eris.New("resources: --limit must be >= 1")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		r := &model.Resource{
			TenantID:   tenant,
			Channel:    channel,
			Identity:   identity,
			DailyLimit: limit,
			Status:     model.ResourceActive,
		}
		if err := st.UpsertResource(ctx, r); err != nil {
			return err
		}
		zap.L().Info("resource registered",
			zap.String("resource_id", r.ID),
			zap.String("channel", string(channel)),
			zap.Int("daily_limit", limit),
		)
		fmt.Println(r.ID)
		return nil
	},
}

func init() {
	resourcesListCmd.Flags().String("tenant", "", "tenant ID (required)")
	resourcesListCmd.Flags().String("channel", "", "filter by channel")
	_ = resourcesListCmd.MarkFlagRequired("tenant")

	f := resourcesAddCmd.Flags()
	f.String("tenant", "", "tenant ID (required)")
	f.String("channel", "", "channel: email, linkedin, sms, or voice (required)")
	f.String("identity", "", "sending identity, e.g. a mailbox or phone number (required)")
	f.Int("limit", 0, "daily send limit (required)")
	_ = resourcesAddCmd.MarkFlagRequired("tenant")
	_ = resourcesAddCmd.MarkFlagRequired("channel")
	_ = resourcesAddCmd.MarkFlagRequired("identity")
	_ = resourcesAddCmd.MarkFlagRequired("limit")

	resourcesCmd.AddCommand(resourcesListCmd, resourcesAddCmd)
	rootCmd.AddCommand(resourcesCmd)
}
