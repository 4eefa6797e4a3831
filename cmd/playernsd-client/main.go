// Command playernsd-client is an interactive proxy.Proxy-based tool for
// talking to a playernsd daemon directly, exercising pkg/client and
// pkg/proxy the way cmd/sdo_client exercises gocanopen's pkg/sdo.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/samsamfire/playernsd/internal/wire"
	"github.com/samsamfire/playernsd/pkg/client"
	"github.com/samsamfire/playernsd/pkg/proxy"
)

var (
	addr string
	id   string
)

func connectAndRegister(ctx context.Context) (*proxy.Proxy, *client.Engine, error) {
	return connectAndRegisterWithHandler(ctx, client.NoopHandler{})
}

// printingHandler prints inbound messages to stdout, used by listenCmd so
// "listen" actually shows what it claims to.
type printingHandler struct {
	client.NoopHandler
}

func (printingHandler) ReceiveText(source wire.ClientID, body string) {
	fmt.Printf("%s: %s\n", source, body)
}

func (printingHandler) ReceiveBinary(source wire.ClientID, payload []byte) {
	fmt.Printf("%s: <%d bytes binary>\n", source, len(payload))
}

func connectAndRegisterWithHandler(ctx context.Context, handler client.Handler) (*proxy.Proxy, *client.Engine, error) {
	eng := client.NewEngine(addr, handler)
	if err := eng.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for eng.State() != client.Greeting {
		if time.Now().After(deadline) {
			return nil, nil, fmt.Errorf("timed out waiting for server greeting")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := eng.Register(id); err != nil {
		return nil, nil, fmt.Errorf("registering: %w", err)
	}
	for eng.State() != client.Registered {
		if time.Now().After(deadline) {
			return nil, nil, fmt.Errorf("timed out waiting for registration")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return proxy.New(eng), eng, nil
}

func main() {
	root := &cobra.Command{
		Use:   "playernsd-client",
		Short: "Interactive client for a playernsd daemon",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "localhost:9999", "daemon address")
	root.PersistentFlags().StringVar(&id, "id", "playernsd-client", "client id to register with")

	root.AddCommand(sendCmd(), listenCmd(), propGetCmd(), propSetCmd(), listClientsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func sendCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a text message, broadcast if --target is empty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, eng, err := connectAndRegister(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			return p.SendMessage(target, args[0])
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target client id; empty broadcasts")
	return cmd
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Register and print incoming messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, eng, err := connectAndRegisterWithHandler(cmd.Context(), printingHandler{})
			if err != nil {
				return err
			}
			defer eng.Close()
			<-cmd.Context().Done()
			return nil
		},
	}
}

func propGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prop-get <key>",
		Short: "Request a property's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, eng, err := connectAndRegister(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			pv, err := p.GetProperty(args[0])
			if err != nil {
				return err
			}
			fmt.Println(pv.Value)
			return nil
		},
	}
}

func propSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prop-set <key> <value>",
		Short: "Set a property's value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, eng, err := connectAndRegister(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			return p.SetProperty(args[0], args[1])
		},
	}
}

func listClientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-clients",
		Short: "List connected clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, eng, err := connectAndRegister(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()
			ids, err := p.GetClientList()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
