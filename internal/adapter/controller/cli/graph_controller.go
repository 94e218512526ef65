package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/journeygrid/journeygrid/internal/application/editor"
	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// GraphController handles node and edge commands on one journey
type GraphController struct {
	root      *RootBuilder
	journeyID string
}

// NewGraphController creates a new graph controller
func NewGraphController(root *RootBuilder) *GraphController {
	return &GraphController{root: root}
}

// NodeCommand builds the 'node' command tree
func (c *GraphController) NodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Edit the nodes of a journey",
	}
	cmd.PersistentFlags().StringVarP(&c.journeyID, "journey", "j", "", "Journey ID (default: current)")
	cmd.AddCommand(c.nodeAdd(), c.nodeRemove(), c.nodeSet(), c.nodeMove())
	return cmd
}

// EdgeCommand builds the 'edge' command tree
func (c *GraphController) EdgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Edit the edges of a journey",
	}
	cmd.PersistentFlags().StringVarP(&c.journeyID, "journey", "j", "", "Journey ID (default: current)")
	cmd.AddCommand(c.edgeAdd(), c.edgeRemove())
	return cmd
}

func (c *GraphController) nodeAdd() *cobra.Command {
	var (
		nodeType    string
		x, y        float64
		description string
		icon        string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "add [label]",
		Short: "Add a node; the first node of a journey is its milestone",
		Args:  cobra.ExactArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			if _, err := openJourney(ctx, app, c.journeyID); err != nil {
				return p.PresentError(err)
			}
			n := journey.Node{
				Type:        journey.NodeType(nodeType),
				Label:       model.NormalizeText(args[0]),
				Description: description,
				Icon:        icon,
				Status:      journey.NodeStatus(status),
				Position:    journey.Position{X: x, Y: y},
			}
			added, err := app.Editor.AddNode(ctx, n)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Node added", added)
		}),
	}

	cmd.Flags().StringVarP(&nodeType, "type", "t", "", "Node type: goal or task (default: goal; milestone for the first node)")
	cmd.Flags().Float64Var(&x, "x", 0, "Canvas X position")
	cmd.Flags().Float64Var(&y, "y", 0, "Canvas Y position")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Node description")
	cmd.Flags().StringVar(&icon, "icon", "", "Node icon")
	cmd.Flags().StringVar(&status, "status", "", "Node status: not-started, in-progress or completed")
	return cmd
}

func (c *GraphController) nodeRemove() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [node-id...]",
		Short: "Remove nodes and their edges; the milestone cannot be removed",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := openJourney(ctx, app, c.journeyID)
			if err != nil {
				return p.PresentError(err)
			}
			if err := app.Editor.DeleteItems(ctx, args, nil); err != nil {
				return p.PresentError(err)
			}
			detail, err := saved(ctx, app, id)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Nodes removed", detail)
		}),
	}
}

func (c *GraphController) nodeSet() *cobra.Command {
	var (
		label       string
		description string
		icon        string
		status      string
		journalID   string
	)

	cmd := &cobra.Command{
		Use:   "set [node-id]",
		Short: "Change node fields",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
		id, err := openJourney(ctx, app, c.journeyID)
		if err != nil {
			return p.PresentError(err)
		}
		changed := cmd.Flags().Changed
		u := editor.NodeUpdate{}
		if changed("label") {
			v := model.NormalizeText(label)
			u.Label = &v
		}
		if changed("description") {
			u.Description = &description
		}
		if changed("icon") {
			u.Icon = &icon
		}
		if changed("status") {
			v := journey.NodeStatus(status)
			u.Status = &v
		}
		if changed("journal") {
			u.JournalID = &journalID
		}
		if err := app.Editor.UpdateNodeField(ctx, args[0], u); err != nil {
			return p.PresentError(err)
		}
		detail, err := saved(ctx, app, id)
		if err != nil {
			return p.PresentError(err)
		}
		return p.PresentSuccess("Node updated", detail)
	})

	cmd.Flags().StringVar(&label, "label", "", "Node label")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Node description")
	cmd.Flags().StringVar(&icon, "icon", "", "Node icon")
	cmd.Flags().StringVar(&status, "status", "", "Node status: not-started, in-progress or completed")
	cmd.Flags().StringVar(&journalID, "journal", "", "Attach a journal by ID (empty string detaches)")
	return cmd
}

func (c *GraphController) nodeMove() *cobra.Command {
	return &cobra.Command{
		Use:   "move [node-id] [x] [y]",
		Short: "Move a node on the canvas",
		Args:  cobra.ExactArgs(3),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return p.PresentError(fmt.Errorf("invalid x %q: %w", args[1], err))
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return p.PresentError(fmt.Errorf("invalid y %q: %w", args[2], err))
			}
			id, err := openJourney(ctx, app, c.journeyID)
			if err != nil {
				return p.PresentError(err)
			}
			if err := app.Editor.MoveNode(ctx, args[0], journey.Position{X: x, Y: y}, true); err != nil {
				return p.PresentError(err)
			}
			detail, err := saved(ctx, app, id)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Node moved", detail)
		}),
	}
}

func (c *GraphController) edgeAdd() *cobra.Command {
	var edgeType string

	cmd := &cobra.Command{
		Use:   "add [source-id] [target-id]",
		Short: "Connect two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			if _, err := openJourney(ctx, app, c.journeyID); err != nil {
				return p.PresentError(err)
			}
			e, err := app.Editor.AddEdge(ctx, args[0], args[1], edgeType)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Edge added", e)
		}),
	}

	cmd.Flags().StringVarP(&edgeType, "type", "t", "", "Edge rendering type")
	return cmd
}

func (c *GraphController) edgeRemove() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [edge-id...]",
		Short: "Remove edges",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.root.run(func(ctx context.Context, app *App, p output.Presenter, args []string) error {
			id, err := openJourney(ctx, app, c.journeyID)
			if err != nil {
				return p.PresentError(err)
			}
			if err := app.Editor.DeleteItems(ctx, nil, args); err != nil {
				return p.PresentError(err)
			}
			detail, err := saved(ctx, app, id)
			if err != nil {
				return p.PresentError(err)
			}
			return p.PresentSuccess("Edges removed", detail)
		}),
	}
}
