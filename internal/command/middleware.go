package command

// Middleware wraps a command with cross-cutting behavior.
type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx *Context) error
}

func (w *wrappedCommand) Run(ctx *Context) error {
	return w.wrap(ctx)
}

// WithCommandLogger logs every execution with its outcome.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx *Context) error {
				err := cmd.Run(ctx)
				evt := ctx.Deps.Log.Info()
				if err != nil {
					evt = ctx.Deps.Log.Error().Err(err)
				}
				evt.Str("command", cmd.Name()).
					Str("guild_id", ctx.GuildID()).
					Str("user_id", ctx.UserID()).
					Msg("command executed")
				return err
			},
		}
	}
}
