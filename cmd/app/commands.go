package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/doorlink/internal"
	"github.com/starford/doorlink/internal/itemservice"
	"github.com/starford/doorlink/internal/models"
)

// queryCommands are the one-shot commands the process gateway runs. Each
// prints JSON on stdout; failures exit non-zero with a message on stderr.
func queryCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "documents",
			Usage: "List documents",
			Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				docs, err := svc.Documents(ctx)
				if err != nil {
					return err
				}
				return printJSON(docs)
			}),
		},
		{
			Name:  "items",
			Usage: "List the items of a document",
			Flags: []cli.Flag{prefixFlag()},
			Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				items, err := svc.Items(ctx, cmd.String("prefix"))
				if err != nil {
					return err
				}
				return printJSON(items)
			}),
		},
		relationCommand("parents", "Items an item links to", (*itemservice.Service).Parents),
		relationCommand("children", "Items linking to an item", (*itemservice.Service).Children),
		relationCommand("linked", "Items linking to an item from outside its child documents", (*itemservice.Service).Linked),
		{
			Name:      "link",
			Usage:     "Link two items in the direction the document hierarchy implies",
			ArgsUsage: "CHILD PARENT",
			Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				if cmd.NArg() != 2 {
					return errors.New("link needs CHILD and PARENT")
				}
				holder, err := svc.Link(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
				if err != nil {
					return err
				}
				return printJSON(holder)
			}),
		},
		{
			Name:      "add_reference",
			Usage:     "Append a reference entry to an item",
			ArgsUsage: "'{\"path\": \"src/a.c\", \"type\": \"file\", \"keyword\": \"init\"}'",
			Flags:     []cli.Flag{itemFlag()},
			Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				var entry models.ReferenceEntry
				if err := json.Unmarshal([]byte(cmd.Args().First()), &entry); err != nil {
					return fmt.Errorf("reference entry: %w", err)
				}
				_, err := svc.AddReference(ctx, cmd.String("item"), entry)
				return err
			}),
		},
		{
			Name:  "add_item",
			Usage: "Create the next item of a document",
			Flags: []cli.Flag{prefixFlag(), &cli.StringFlag{Name: "text", Usage: "Item text"}},
			Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				item, err := svc.AddItem(ctx, cmd.String("prefix"), cmd.String("text"))
				if err != nil {
					return err
				}
				return printJSON(map[string]string{item.UID: item.Path})
			}),
		},
		{
			Name:      "references",
			Usage:     "Resolve the references of an item file",
			ArgsUsage: "FILE",
			Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				if cmd.NArg() != 1 {
					return errors.New("references needs FILE")
				}
				res, err := svc.ResolveReferences(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				return printJSON(res)
			}),
		},
		{
			Name:      "copy_reference",
			Usage:     "Print the reference entry for a file",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{&cli.StringFlag{Name: "keyword", Usage: "Text to locate in the file"}},
			Action: withService(func(_ context.Context, cmd *cli.Command, svc *itemservice.Service) error {
				if cmd.NArg() != 1 {
					return errors.New("copy_reference needs FILE")
				}
				block, err := svc.CopyReference(cmd.Args().First(), cmd.String("keyword"))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, block)
				return err
			}),
		},
		{
			Name:      "search",
			Usage:     "Full-text search over item headers and text",
			ArgsUsage: "QUERY",
			Flags:     []cli.Flag{&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum results"}},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				if cmd.NArg() != 1 {
					return errors.New("search needs QUERY")
				}
				core, err := openCore(cmd, true)
				if err != nil {
					return err
				}
				defer core.Close()
				if err := core.Service.Sync(ctx); err != nil {
					return err
				}
				res, err := core.Service.Search(ctx, cmd.Args().First(), int(cmd.Int("limit")))
				if err != nil {
					return err
				}
				return printJSON(res)
			},
		},
	}
}

func itemFlag() cli.Flag {
	return &cli.StringFlag{Name: "item", Usage: "Item UID", Required: true}
}

func prefixFlag() cli.Flag {
	return &cli.StringFlag{Name: "prefix", Usage: "Document prefix", Required: true}
}

type serviceAction func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error

func withService(fn serviceAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		core, err := openCore(cmd, false)
		if err != nil {
			return err
		}
		defer core.Close()
		return fn(ctx, cmd, core.Service)
	}
}

func relationCommand(name, usage string, query func(*itemservice.Service, context.Context, string) ([]models.ItemSummary, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{itemFlag()},
		Action: withService(func(ctx context.Context, cmd *cli.Command, svc *itemservice.Service) error {
			items, err := query(svc, ctx, cmd.String("item"))
			if err != nil {
				return err
			}
			return printJSON(items)
		}),
	}
}

// openCore logs to stderr at the configured level; stdout carries results.
func openCore(cmd *cli.Command, withIndex bool) (*internal.Core, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Open(cfg, internal.NewLogger(cfg, os.Stderr), withIndex)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}
