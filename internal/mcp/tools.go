package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cavarest/elemental-dragon/internal/entity"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// RegisterTools adds all harness tools to the MCP server.
func RegisterTools(s *server.MCPServer, c *Controller) {
	s.AddTool(connectTool(), c.handleConnect)
	s.AddTool(disconnectTool(), c.handleDisconnect)
	s.AddTool(sendCommandTool(), c.handleSendCommand)
	s.AddTool(playerChatTool(), c.handlePlayerChat)
	s.AddTool(spawnEntityTool(), c.handleSpawnEntity)
	s.AddTool(locateEntityTool(), c.handleLocateEntity)
	s.AddTool(entityHealthTool(), c.handleEntityHealth)
	s.AddTool(clearEntitiesTool(), c.handleClearEntities)
	s.AddTool(listScenariosTool(), c.handleListScenarios)
	s.AddTool(runScenarioTool(), c.handleRunScenario)
}

// --- Tool definitions ---

func connectTool() mcp.Tool {
	return mcp.NewTool("connect",
		mcp.WithDescription("Open a harness context: connect the remote console and optionally attach a simulated player. "+
			"Only one context can be open at a time. Entities spawned through it are removed on disconnect."),
		mcp.WithBoolean("with_player", mcp.Description("Attach a simulated player (needed for player_chat)")),
		mcp.WithString("player", mcp.Description("Player name to attach; defaults to the configured test player")),
	)
}

func disconnectTool() mcp.Tool {
	return mcp.NewTool("disconnect",
		mcp.WithDescription("Tear down the open context: remove spawned entities, close the player and the console."),
	)
}

func sendCommandTool() mcp.Tool {
	return mcp.NewTool("send_command",
		mcp.WithDescription("Run one server command on the remote console and return its raw response."),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command without the leading slash, e.g. 'seed'")),
	)
}

func playerChatTool() mcp.Tool {
	return mcp.NewTool("player_chat",
		mcp.WithDescription("Send a chat line as the simulated player. Lines starting with '/' run as player commands; "+
			"plugin replies are returned in the result."),
		mcp.WithString("line", mcp.Required(), mcp.Description("Chat line, e.g. '/fire 1'")),
	)
}

func spawnEntityTool() mcp.Tool {
	return mcp.NewTool("spawn_entity",
		mcp.WithDescription("Summon a frozen, tagged entity. Returns the tag to use with locate_entity and entity_health."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Entity type, e.g. 'minecraft:zombie'")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y coordinate")),
		mcp.WithNumber("z", mcp.Required(), mcp.Description("Z coordinate")),
		mcp.WithString("tag", mcp.Description("Tag to attach; a unique one is generated when empty")),
		mcp.WithNumber("health", mcp.Description("Initial health; defaults to 20")),
	)
}

func locateEntityTool() mcp.Tool {
	return mcp.NewTool("locate_entity",
		mcp.WithDescription("Read the position of the entity carrying a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Entity tag")),
	)
}

func entityHealthTool() mcp.Tool {
	return mcp.NewTool("entity_health",
		mcp.WithDescription("Read the health of the entity carrying a tag."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Entity tag")),
	)
}

func clearEntitiesTool() mcp.Tool {
	return mcp.NewTool("clear_entities",
		mcp.WithDescription("Kill every non-player entity on the server."),
	)
}

func listScenariosTool() mcp.Tool {
	return mcp.NewTool("list_scenarios",
		mcp.WithDescription("List the registered verification scenarios. Read-only."),
		mcp.WithString("tag", mcp.Description("Only list scenarios carrying this tag")),
	)
}

func runScenarioTool() mcp.Tool {
	return mcp.NewTool("run_scenario",
		mcp.WithDescription("Run one registered scenario in a fresh context and return its outcome and event log. "+
			"Fails while a context opened with connect is still open."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Scenario name from list_scenarios")),
	)
}

// --- Tool handlers ---

func (c *Controller) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username := strings.TrimSpace(request.GetString("player", ""))
	if username == "" && request.GetBool("with_player", false) {
		username = c.Config.Player
	}

	sess, err := c.connect(ctx, username)
	if err != nil {
		return mcp.NewToolResultErrorf("Failed to connect: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    "connected",
	})), nil
}

func (c *Controller) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := c.Disconnect(ctx)
	if err != nil && events == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp := &ToolResponse{Events: events, Result: "disconnected"}
	if err != nil {
		resp.Result = "disconnected with teardown errors: " + err.Error()
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func (c *Controller) handleSendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := c.session()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command := strings.TrimPrefix(strings.TrimSpace(request.GetString("command", "")), "/")
	if command == "" {
		return mcp.NewToolResultError("command must not be empty"), nil
	}

	res, err := sess.h.Send(ctx, command)
	if err != nil {
		return mcp.NewToolResultErrorf("Command failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    res.Raw,
	})), nil
}

func (c *Controller) handlePlayerChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := c.session()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := sess.h.RequirePlayer()
	if err != nil {
		return mcp.NewToolResultError("No simulated player is attached. Reconnect with with_player=true."), nil
	}
	line := request.GetString("line", "")
	if strings.TrimSpace(line) == "" {
		return mcp.NewToolResultError("line must not be empty"), nil
	}

	res, err := p.Chat(ctx, line)
	if err != nil {
		return mcp.NewToolResultErrorf("Chat failed: %v", err), nil
	}
	result := res.Raw
	if len(res.Echo) > 0 {
		result = strings.Join(res.Echo, "\n")
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    result,
	})), nil
}

func (c *Controller) handleSpawnEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := c.session()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := strings.TrimSpace(request.GetString("kind", ""))
	if kind == "" {
		return mcp.NewToolResultError("kind must not be empty"), nil
	}
	health := request.GetFloat("health", world.HealthZombie)
	if health <= 0 {
		return mcp.NewToolResultErrorf("health must be positive, got %v", health), nil
	}
	tag := strings.TrimSpace(request.GetString("tag", ""))
	if tag == "" {
		tag = entity.UniqueTag("mcp")
	}
	pos := world.Pos(request.GetFloat("x", 0), request.GetFloat("y", 0), request.GetFloat("z", 0))

	e, err := sess.h.Spawn(ctx, kind, pos, tag, health)
	if err != nil {
		return mcp.NewToolResultErrorf("Spawn failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    "spawned",
		Entity:    &EntityView{Kind: e.Kind, Tag: e.Tag, Health: &e.Health, Position: &e.Position},
	})), nil
}

func (c *Controller) handleLocateEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := c.session()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag := strings.TrimSpace(request.GetString("tag", ""))
	if tag == "" {
		return mcp.NewToolResultError("tag must not be empty"), nil
	}

	pos, err := sess.h.Entities.Locate(ctx, tag)
	if err != nil {
		return mcp.NewToolResultErrorf("Locate failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    pos.String(),
		Entity:    &EntityView{Tag: tag, Position: &pos},
	})), nil
}

func (c *Controller) handleEntityHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := c.session()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag := strings.TrimSpace(request.GetString("tag", ""))
	if tag == "" {
		return mcp.NewToolResultError("tag must not be empty"), nil
	}

	hp, err := sess.h.Entities.Health(ctx, tag)
	if err != nil {
		return mcp.NewToolResultErrorf("Health read failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    world.FormatNumber(hp),
		Entity:    &EntityView{Tag: tag, Health: &hp},
	})), nil
}

func (c *Controller) handleClearEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := c.session()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.h.Entities.ClearAll(ctx); err != nil {
		return mcp.NewToolResultErrorf("Clear failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:    sess.drainEvents(),
		Connected: true,
		Player:    sess.h.AttachedPlayer(),
		Result:    "cleared",
	})), nil
}

func (c *Controller) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if c.Registry == nil {
		return mcp.NewToolResultError("no scenarios registered"), nil
	}
	var tags []string
	if tag := strings.TrimSpace(request.GetString("tag", "")); tag != "" {
		tags = []string{tag}
	}
	selected, err := c.Registry.Select(nil, nil, tags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp := &ToolResponse{Connected: c.isConnected()}
	for _, s := range selected {
		resp.Scenarios = append(resp.Scenarios, ScenarioView{
			Name:        s.Name,
			Story:       s.Story,
			Description: s.Description,
			Tags:        s.Tags,
			NeedsPlayer: s.NeedsPlayer,
		})
	}
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func (c *Controller) handleRunScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(request.GetString("name", ""))
	if name == "" {
		return mcp.NewToolResultError("name must not be empty"), nil
	}

	sum, events, err := c.runScenario(ctx, name)
	if err != nil {
		return mcp.NewToolResultErrorf("Run failed: %v", err), nil
	}
	if len(sum.Results) == 0 {
		return mcp.NewToolResultErrorf("scenario %s produced no result", name), nil
	}
	r := sum.Results[0]
	return mcp.NewToolResultText(respondJSON(&ToolResponse{
		Events:  events,
		Result:  string(r.Status),
		Outcome: outcomeView(sum.RunID, r.Scenario, string(r.Status), r.Message, r.Duration),
	})), nil
}

func (c *Controller) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
