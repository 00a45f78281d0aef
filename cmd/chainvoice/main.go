package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/labstack/gommon/log"
	"golang.org/x/term"

	"github.com/chainvoice/chainvoice-go/internal/boot"
	"github.com/chainvoice/chainvoice-go/internal/ledger"
	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/internal/service/social"
	"github.com/chainvoice/chainvoice-go/internal/session"
	"github.com/chainvoice/chainvoice-go/internal/viewstate"
	"github.com/chainvoice/chainvoice-go/internal/wallet"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
	"github.com/chainvoice/chainvoice-go/pkg/tx"
)

const feedPageSize = 20

const usage = `usage: chainvoice <command> [args]

  connect                                    sign in with your wallet
  disconnect                                 sign out and forget the session
  whoami                                     show the signed-in principal

  profile create <username> [display] [bio] [avatar]
  profile update <display> [bio] [avatar]
  profile show [principal]

  post <content>                             post a public message
  dm <recipient> <content>                   send a direct message
  react <message-id> <emoji>
  unreact <message-id> <emoji>
  follow <principal>
  unfollow <principal>

  feed                                       show the latest messages
  stats [principal]                          show profile counters
  pending                                    list unconfirmed transactions
  reconcile                                  poll pending transactions once
`

type app struct {
	config  *boot.Config
	manager *session.Manager
	service *social.Service
	cache   *viewstate.Cache
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	config, err := boot.Load(ctx)
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	a, closeFn, err := newApp(config)
	if err != nil {
		log.Fatalf("startup: %+v", err)
	}
	defer closeFn()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, model.ErrorAuthRequired) {
			log.Fatalf("%v (run `chainvoice connect`)", err)
		}
		log.Fatalf("%s: %+v", os.Args[1], err)
	}
}

func newApp(config *boot.Config) (*app, func(), error) {
	network := config.LedgerNetwork()

	var connector wallet.Connector
	if config.AgentURL != "" {
		connector = wallet.NewLoopbackConnector(config.AgentURL, network)
	} else {
		connector = wallet.NewKeystoreConnector(
			filepath.Join(config.DataDir, "keystore.json"), network, promptPassphrase)
	}

	store, err := session.OpenStore(config.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}

	manager, err := session.NewManager(store, connector)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("restoring session: %w", err)
	}

	client := ledger.NewClient(config.NodeURL, nil, ledger.DefaultBackoff)
	profiles := tx.Contract{Address: config.Profiles.Address, Name: config.Profiles.Name}
	messages := tx.Contract{Address: config.Messages.Address, Name: config.Messages.Name}
	query := ledger.NewQueryClient(client, profiles, messages)

	outbox, err := viewstate.OpenOutbox(config.DataDir)
	if err != nil {
		manager.Close()
		return nil, nil, fmt.Errorf("opening outbox: %w", err)
	}
	cache := viewstate.NewCache(outbox, client.GetTxStatus)

	a := &app{
		config:  config,
		manager: manager,
		service: social.New(manager, client, query, cache, profiles, messages, network),
		cache:   cache,
	}

	closeFn := func() {
		cache.Close()
		manager.Close()
	}
	return a, closeFn, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "connect":
		return a.connect(ctx)
	case "disconnect":
		return a.manager.Disconnect()
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profile(ctx, args)
	case "post":
		return a.post(ctx, args)
	case "dm":
		return a.directMessage(ctx, args)
	case "react", "unreact":
		return a.react(ctx, command, args)
	case "follow", "unfollow":
		return a.follow(ctx, command, args)
	case "feed":
		return a.feed(ctx)
	case "stats":
		return a.stats(ctx, args)
	case "pending":
		return a.pending()
	case "reconcile":
		return a.cache.Reconcile(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) connect(ctx context.Context) error {
	p, err := a.manager.Connect(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", p)
	return nil
}

func (a *app) whoami() error {
	p, ok := a.manager.CurrentPrincipal()
	if !ok {
		fmt.Println("signed out")
		return nil
	}
	fmt.Println(p)
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: profile create|update|show ...")
	}

	switch args[0] {
	case "create":
		if len(args) < 2 {
			return errors.New("usage: profile create <username> [display] [bio] [avatar]")
		}
		padded := pad(args[1:], 4)
		txID, err := a.service.CreateProfile(ctx, padded[0], padded[1], padded[2], padded[3])
		if err != nil {
			return err
		}
		fmt.Printf("submitted: %s\n", txID)
		return nil

	case "update":
		if len(args) < 2 {
			return errors.New("usage: profile update <display> [bio] [avatar]")
		}
		padded := pad(args[1:], 3)
		txID, err := a.service.UpdateProfile(ctx, padded[0], padded[1], padded[2])
		if err != nil {
			return err
		}
		fmt.Printf("submitted: %s\n", txID)
		return nil

	case "show":
		subject, err := a.subject(args[1:])
		if err != nil {
			return err
		}
		profile, err := a.service.GetProfile(ctx, subject)
		if err != nil {
			return err
		}
		if profile == nil {
			fmt.Printf("no profile for %s\n", subject)
			return nil
		}
		fmt.Printf("@%s (%s)\n", profile.Username, profile.Owner)
		if profile.DisplayName != "" {
			fmt.Println(profile.DisplayName)
		}
		if profile.Bio != "" {
			fmt.Println(profile.Bio)
		}
		return nil

	default:
		return fmt.Errorf("unknown profile command %q", args[0])
	}
}

func (a *app) post(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: post <content>")
	}
	txID, err := a.service.PostPublicMessage(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("submitted: %s\n", txID)
	return nil
}

func (a *app) directMessage(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: dm <recipient> <content>")
	}
	txID, err := a.service.SendDirectMessage(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("submitted: %s\n", txID)
	return nil
}

func (a *app) react(ctx context.Context, command string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <message-id> <emoji>", command)
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("message id must be a number: %w", err)
	}

	var txID string
	if command == "react" {
		txID, err = a.service.ReactToMessage(ctx, model.MessageID(id), args[1])
	} else {
		txID, err = a.service.RemoveReaction(ctx, model.MessageID(id), args[1])
	}
	if err != nil {
		return err
	}
	fmt.Printf("submitted: %s\n", txID)
	return nil
}

func (a *app) follow(ctx context.Context, command string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <principal>", command)
	}

	var txID string
	var err error
	if command == "follow" {
		txID, err = a.service.FollowUser(ctx, args[0])
	} else {
		txID, err = a.service.UnfollowUser(ctx, args[0])
	}
	if err != nil {
		return err
	}
	fmt.Printf("submitted: %s\n", txID)
	return nil
}

// feed walks the newest messages down from the ledger's message counter,
// then appends any of our own submissions still waiting for confirmation.
func (a *app) feed(ctx context.Context) error {
	count, err := a.service.GetMessageCount(ctx)
	if err != nil {
		return err
	}

	shown := 0
	for id := count; id >= 1 && shown < feedPageSize; id-- {
		message, err := a.service.GetMessage(ctx, model.MessageID(id))
		if err != nil {
			return err
		}
		if message == nil || !message.IsPublic {
			continue
		}
		fmt.Printf("#%d %s: %s\n", message.ID, message.Author, message.Content)
		shown++
	}

	if self, ok := a.manager.CurrentPrincipal(); ok {
		overlay, err := a.cache.Overlay(self)
		if err != nil {
			return err
		}
		for _, pending := range overlay {
			fmt.Printf("(pending %s) %s\n", pending.Operation, pending.TxID)
		}
	}
	return nil
}

func (a *app) stats(ctx context.Context, args []string) error {
	subject, err := a.subject(args)
	if err != nil {
		return err
	}
	stats, err := a.service.GetUserStats(ctx, subject)
	if err != nil {
		return err
	}
	if stats == nil {
		fmt.Printf("no profile for %s\n", subject)
		return nil
	}
	fmt.Printf("%s: %d messages, %d followers, %d following\n",
		subject, stats.MessageCount, stats.FollowerCount, stats.FollowingCount)
	return nil
}

func (a *app) pending() error {
	self, ok := a.manager.CurrentPrincipal()
	if !ok {
		return model.ErrorAuthRequired
	}
	overlay, err := a.cache.Overlay(self)
	if err != nil {
		return err
	}
	if len(overlay) == 0 {
		fmt.Println("nothing pending")
		return nil
	}
	for _, pending := range overlay {
		fmt.Printf("%s %s %s\n", pending.TxID, pending.Operation, pending.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// subject resolves an optional principal argument, defaulting to the
// signed-in identity.
func (a *app) subject(args []string) (principal.Principal, error) {
	if len(args) > 0 {
		return principal.Parse(args[0])
	}
	self, ok := a.manager.CurrentPrincipal()
	if !ok {
		return "", model.ErrorAuthRequired
	}
	return self, nil
}

func pad(args []string, n int) []string {
	padded := make([]string, n)
	copy(padded, args)
	return padded
}

func promptPassphrase(creating bool) (string, error) {
	if creating {
		fmt.Fprint(os.Stderr, "new keystore passphrase: ")
	} else {
		fmt.Fprint(os.Stderr, "keystore passphrase: ")
	}
	passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if creating {
		fmt.Fprint(os.Stderr, "confirm passphrase: ")
		confirmed, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(passphrase) != string(confirmed) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(passphrase), nil
}
