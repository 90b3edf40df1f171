package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"fsanano/foodshare/internal/client"
	"fsanano/foodshare/internal/model"
	"fsanano/foodshare/internal/service"

	"github.com/spf13/cobra"
)

type app struct {
	server  string
	timeout time.Duration
	out     io.Writer
	client  *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	defaultServer := os.Getenv("FOODCTL_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:5000"
	}

	root := &cobra.Command{
		Use:          "foodctl",
		Short:        "Command line client for the food sharing API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.client = client.NewClient(client.Config{BaseURL: a.server, Timeout: a.timeout})
			a.out = cmd.OutOrStdout()
		},
	}
	root.PersistentFlags().StringVar(&a.server, "server", defaultServer, "API base URL")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.searchCmd(),
		a.leaderboardCmd(),
		a.addBalanceCmd(),
		a.receiveFoodCmd(),
		a.foodDetailsCmd(),
		a.donateCmd(),
		a.donationsCmd(),
		a.requestCmd(),
		a.requestsCmd(),
		a.overviewCmd(),
	)
	return root
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) signupCmd() *cobra.Command {
	var in service.SignupInput
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a donor or receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.client.Signup(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Username, "username", "", "unique username")
	f.StringVar(&in.Name, "name", "", "display name")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Password, "password", "", "password")
	f.StringVar(&in.City, "city", "", "city")
	f.StringVar(&in.Role, "role", "", "donor or receiver")
	f.StringVar(&in.FoodDetails, "food-details", "", "free-text food details")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Check credentials and mark the account active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.client.Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <city> <role>",
		Short: "List recently active counterparts of role in city",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := model.ParseRole(args[1])
			if err != nil {
				return err
			}
			accounts, err := a.client.Search(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			return a.print(accounts)
		},
	}
}

func (a *app) leaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the accounts with the most pickups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.client.Leaderboard(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(accounts)
		},
	}
}

func (a *app) addBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-balance <username> <amount>",
		Short: "Credit (or debit, with a negative amount) an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			acc, err := a.client.AddBalance(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}
}

func (a *app) receiveFoodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receive-food <username>",
		Short: "Record a completed pickup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.client.ReceiveFood(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}
}

func (a *app) foodDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "food-details <username> <details>",
		Short: "Replace the free-text food details of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.client.UpdateFoodDetails(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.print(acc)
		},
	}
}

func (a *app) donateCmd() *cobra.Command {
	var (
		in       service.DonationInput
		quantity string
	)
	cmd := &cobra.Command{
		Use:   "donate",
		Short: "Post a donation offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Quantity = service.FlexString(quantity)
			d, err := a.client.SubmitDonation(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(d)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Username, "username", "", "donor username")
	f.StringVar(&in.City, "city", "", "city, taken from the donor when username is set")
	f.StringVar(&in.FoodName, "food", "", "food name")
	f.StringVar(&quantity, "quantity", "", "quantity")
	f.StringVar(&in.Description, "description", "", "description")
	f.StringVar(&in.ExpiryDate, "expiry", "", "expiry date")
	f.StringVar(&in.FoodImage, "image", "", "image URI")
	_ = cmd.MarkFlagRequired("food")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func (a *app) donationsCmd() *cobra.Command {
	var city string
	cmd := &cobra.Command{
		Use:   "donations",
		Short: "List recent donation offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			donations, err := a.client.ListDonations(cmd.Context(), city)
			if err != nil {
				return err
			}
			return a.print(donations)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "only donations in this city")
	return cmd
}

func (a *app) requestCmd() *cobra.Command {
	var (
		in       service.FoodRequestInput
		quantity string
	)
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Post a food request",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Quantity = service.FlexString(quantity)
			r, err := a.client.SubmitRequest(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.print(r)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Username, "username", "", "requesting username")
	f.StringVar(&in.Name, "name", "", "contact name")
	f.StringVar(&in.Phone, "phone", "", "contact phone")
	f.StringVar(&in.Address, "address", "", "delivery address")
	f.StringVar(&in.ItemNeeded, "item", "", "item needed")
	f.StringVar(&quantity, "quantity", "", "quantity")
	f.StringVar(&in.DonorName, "donor", "", "preferred donor")
	f.StringVar(&in.Location, "location", "", "location")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func (a *app) requestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "List recent food requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := a.client.ListRequests(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(requests)
		},
	}
}

func (a *app) overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview <city>",
		Short: "Show active donors, receivers and donations for a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overview, err := a.client.CityOverview(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(overview)
		},
	}
}
