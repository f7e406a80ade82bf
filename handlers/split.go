package handlers

import (
	"errors"

	"github.com/andesco/splitproxy/pkg/splitlib"

	"github.com/gofiber/fiber/v2"
)

// SplitRoute is the path the split proxy answers on.
const SplitRoute = "/api/split"

// SplitPDF is a Fiber handler that forwards a multipart upload through the
// splitlib and relays the split PDF or a JSON error.
func SplitPDF(s *splitlib.Splitter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if id, ok := c.Locals("requestid").(string); ok {
			ctx = splitlib.WithRequestID(ctx, id)
		}

		// Body is only valid until the handler returns, and Handle is done
		// with it by then.
		return send(c, s.Handle(ctx, c.Body(), c.Get(fiber.HeaderContentType)))
	}
}

// ErrorHandler answers errors Fiber raises before the split handler runs,
// such as an exceeded body limit, with the same JSON error shape. Other
// routes keep Fiber's default handling.
func ErrorHandler(s *splitlib.Splitter) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if c.Path() != SplitRoute {
			return fiber.DefaultErrorHandler(c, err)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			err = &splitlib.Error{Kind: splitlib.KindUnknown, Status: fe.Code, Message: fe.Message}
		}
		return send(c, s.ErrorResponse(err))
	}
}

func send(c *fiber.Ctx, resp *splitlib.Response) error {
	for key, values := range resp.Header {
		for _, value := range values {
			c.Set(key, value)
		}
	}
	return c.Status(resp.Status).Send(resp.Body)
}
