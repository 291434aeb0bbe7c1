package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"board-api/domain"
	"board-api/realtime"
)

// Deps bundles the collaborators the HTTP surface is wired with.
type Deps struct {
	Columns ColumnMutator
	Cards   CardMutator
	Tasks   TaskMutator
	Lists   Lister
	Oracle  PermissionChecker
	Auth    Authenticator
	Bus     Publisher
	Access  SubscriptionAuthorizer
	Deduper Deduper
	Logger  *log.Logger
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	e.GET("/api/channels/:channelID/columns", listColumns(d))
	e.POST("/api/channels/:channelID/columns", createColumn(d))
	e.POST("/api/channels/:channelID/columns/:columnID/reorder", reorderColumn(d))
	e.DELETE("/api/channels/:channelID/columns/:columnID", deleteColumn(d))

	e.GET("/api/channels/:channelID/columns/:columnID/cards", listCards(d))
	e.POST("/api/channels/:channelID/columns/:columnID/cards", createCard(d))
	e.POST("/api/channels/:channelID/columns/:columnID/cards/:cardID/reorder", reorderCard(d))
	e.DELETE("/api/channels/:channelID/columns/:columnID/cards/:cardID", deleteCard(d))

	e.GET("/api/channels/:channelID/tasks", listTasks(d))
	e.POST("/api/channels/:channelID/tasks", createTask(d))
	e.POST("/api/channels/:channelID/tasks/:taskID/reorder", reorderTask(d))
	e.DELETE("/api/channels/:channelID/tasks/:taskID", deleteTask(d))

	e.POST("/api/broadcast", postBroadcast(d))
	e.POST("/api/realtime/auth", postRealtimeAuth(d))

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// guarded wraps the shared frame of every entity route: metrics,
// authentication, capability check and idempotency claim.
func guarded(d Deps, route string, cap domain.Capability, fn func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newRequestMetrics(ctx, d.Logger, route)
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		principal, authErr := d.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, "unauthorized")
			return err
		}

		channelID := c.Param("channelID")
		decision, checkErr := d.Oracle.Check(ctx, channelID, principal, cap)
		if checkErr != nil {
			err = writeDomainError(c, metrics, "permission", checkErr)
			return err
		}
		if !decision.Allowed {
			metrics.SetErrorStage("permission")
			err = c.String(http.StatusForbidden, "forbidden")
			return err
		}

		released := func() {}
		if key := c.Request().Header.Get(headerIdempotencyKey); key != "" && d.Deduper != nil {
			added, dedupeErr := d.Deduper.Add(ctx, principal.UserID, key)
			if dedupeErr != nil {
				d.Logger.Warnf("idempotency check failed, processing anyway: %v", dedupeErr)
			} else if !added {
				metrics.SetErrorStage("duplicate")
				err = c.String(http.StatusConflict, "duplicate request")
				return err
			} else {
				userID := principal.UserID
				released = func() {
					if remErr := d.Deduper.Remove(context.WithoutCancel(ctx), userID, key); remErr != nil {
						d.Logger.Warnf("idempotency release failed: %v", remErr)
					}
				}
			}
		}

		err = fn(c, ctx, principal, metrics)
		if err != nil || c.Response().Status >= http.StatusBadRequest {
			released()
		}
		return err
	}
}

func createColumn(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			var in domain.CreateColumnInput
			if err := decodeBody(c, &in); err != nil {
				m.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, "invalid body")
			}
			channelID := c.Param("channelID")

			storeStart := time.Now()
			col, err := d.Columns.Create(ctx, channelID, in)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			if err := fanOut(ctx, d, c, m, principal, domain.EventColumnCreate, channelID, col); err != nil {
				return err
			}
			return c.JSON(http.StatusCreated, col)
		})
}

func reorderColumn(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns/:columnID/reorder", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			var req reorderRequest
			if err := decodeBody(c, &req); err != nil || req.ToPosition == nil {
				m.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, "invalid body")
			}
			channelID := c.Param("channelID")

			storeStart := time.Now()
			cols, err := d.Columns.Reorder(ctx, channelID, c.Param("columnID"), *req.ToPosition)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			if err := fanOut(ctx, d, c, m, principal, domain.EventColumnReorder, channelID, cols); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, cols)
		})
}

func deleteColumn(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns/:columnID", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			channelID := c.Param("channelID")
			columnID := c.Param("columnID")

			storeStart := time.Now()
			err := d.Columns.Delete(ctx, channelID, columnID)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			payload := map[string]string{"id": columnID}
			if err := fanOut(ctx, d, c, m, principal, domain.EventColumnDelete, channelID, payload); err != nil {
				return err
			}
			return c.NoContent(http.StatusNoContent)
		})
}

func createCard(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns/:columnID/cards", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			var in domain.CreateCardInput
			if err := decodeBody(c, &in); err != nil {
				m.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, "invalid body")
			}
			channelID := c.Param("channelID")

			storeStart := time.Now()
			card, err := d.Cards.Create(ctx, channelID, c.Param("columnID"), in)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			if err := fanOut(ctx, d, c, m, principal, domain.EventCardCreate, channelID, card); err != nil {
				return err
			}
			return c.JSON(http.StatusCreated, card)
		})
}

func reorderCard(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns/:columnID/cards/:cardID/reorder", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			var req reorderRequest
			if err := decodeBody(c, &req); err != nil || req.ToPosition == nil {
				m.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, "invalid body")
			}
			channelID := c.Param("channelID")

			storeStart := time.Now()
			cards, err := d.Cards.Reorder(ctx, channelID, c.Param("columnID"), c.Param("cardID"), *req.ToPosition)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			if err := fanOut(ctx, d, c, m, principal, domain.EventCardReorder, channelID, cards); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, cards)
		})
}

func deleteCard(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns/:columnID/cards/:cardID", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			channelID := c.Param("channelID")
			cardID := c.Param("cardID")

			storeStart := time.Now()
			err := d.Cards.Delete(ctx, channelID, c.Param("columnID"), cardID)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			payload := map[string]string{"id": cardID}
			if err := fanOut(ctx, d, c, m, principal, domain.EventCardDelete, channelID, payload); err != nil {
				return err
			}
			return c.NoContent(http.StatusNoContent)
		})
}

func createTask(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/tasks", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			var in domain.CreateTaskInput
			if err := decodeBody(c, &in); err != nil {
				m.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, "invalid body")
			}
			channelID := c.Param("channelID")

			storeStart := time.Now()
			task, err := d.Tasks.Create(ctx, channelID, in)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			if err := fanOut(ctx, d, c, m, principal, domain.EventTaskCreate, channelID, task); err != nil {
				return err
			}
			return c.JSON(http.StatusCreated, task)
		})
}

func reorderTask(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/tasks/:taskID/reorder", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			var req reorderRequest
			if err := decodeBody(c, &req); err != nil || req.ToPosition == nil {
				m.SetErrorStage("decode")
				return c.String(http.StatusBadRequest, "invalid body")
			}
			channelID := c.Param("channelID")

			storeStart := time.Now()
			tasks, err := d.Tasks.Reorder(ctx, channelID, c.Param("taskID"), *req.ToPosition)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			if err := fanOut(ctx, d, c, m, principal, domain.EventTaskReorder, channelID, tasks); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, tasks)
		})
}

func deleteTask(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/tasks/:taskID", domain.CapabilityEdit,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			channelID := c.Param("channelID")
			taskID := c.Param("taskID")

			storeStart := time.Now()
			err := d.Tasks.Delete(ctx, channelID, taskID)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}

			payload := map[string]string{"id": taskID}
			if err := fanOut(ctx, d, c, m, principal, domain.EventTaskDelete, channelID, payload); err != nil {
				return err
			}
			return c.NoContent(http.StatusNoContent)
		})
}

func listColumns(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns", domain.CapabilityView,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			storeStart := time.Now()
			cols, err := d.Lists.ListColumns(ctx, c.Param("channelID"))
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}
			return c.JSON(http.StatusOK, cols)
		})
}

func listCards(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/columns/:columnID/cards", domain.CapabilityView,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			storeStart := time.Now()
			cards, err := d.Lists.ListCards(ctx, c.Param("channelID"), c.Param("columnID"))
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}
			return c.JSON(http.StatusOK, cards)
		})
}

func listTasks(d Deps) echo.HandlerFunc {
	return guarded(d, "/api/channels/:channelID/tasks", domain.CapabilityView,
		func(c echo.Context, ctx context.Context, principal domain.Principal, m *requestMetrics) error {
			channelID := c.Param("channelID")
			scope := c.QueryParam("cardId")
			if scope == "" {
				scope = channelID
			}
			storeStart := time.Now()
			tasks, err := d.Lists.ListTasks(ctx, channelID, scope)
			m.ObserveStore(time.Since(storeStart))
			if err != nil {
				return writeDomainError(c, m, "store", err)
			}
			return c.JSON(http.StatusOK, tasks)
		})
}

func postBroadcast(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := d.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, "unauthorized")
		}

		var req realtime.BroadcastRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.EventType == "" {
			return c.String(http.StatusBadRequest, "eventType is required")
		}

		if err := d.Bus.Publish(c.Request().Context(), req, principal); err != nil {
			return writeDomainError(c, nil, "publish", err)
		}
		return c.JSON(http.StatusOK, broadcastResponse{Success: true})
	}
}

func postRealtimeAuth(d Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := d.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, "unauthorized")
		}

		var req realtime.AuthRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		grant, err := d.Access.Authorize(c.Request().Context(), req, principal)
		if err != nil {
			return writeDomainError(c, nil, "authorize", err)
		}
		return c.JSON(http.StatusOK, grant)
	}
}

// fanOut publishes a committed mutation to the channel topic. The storage
// write is the source of truth; a transport failure surfaces as a server
// error but never rolls the write back.
func fanOut(ctx context.Context, d Deps, c echo.Context, m *requestMetrics, principal domain.Principal, eventType, channelID string, payload any) error {
	if d.Bus == nil {
		return nil
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		m.SetErrorStage("encode_event")
		return c.String(http.StatusInternalServerError, "internal error")
	}
	fanStart := time.Now()
	pubErr := d.Bus.Publish(ctx, realtime.BroadcastRequest{
		EventType: eventType,
		Payload:   data,
		ChannelID: channelID,
		SenderID:  c.Request().Header.Get(headerSenderID),
	}, principal)
	m.ObserveFanout(time.Since(fanStart))
	if pubErr != nil && errors.Is(pubErr, domain.ErrTransportFailure) {
		m.SetErrorStage("fanout")
		return c.String(http.StatusInternalServerError, "broadcast failed")
	}
	if pubErr != nil {
		d.Logger.Warnf("fan-out rejected for %s: %v", eventType, pubErr)
	}
	return nil
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, mutationBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps a domain error to its stable HTTP response. Internal
// detail never crosses the boundary.
func writeDomainError(c echo.Context, m *requestMetrics, stage string, err error) error {
	if m != nil {
		m.SetErrorStage(stage)
	}
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return c.String(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInvalidTopic):
		// Forbidden and unknown topics are indistinguishable on the wire.
		return c.String(http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownEventType):
		return c.String(http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrDuplicateRequest):
		return c.String(http.StatusConflict, "duplicate request")
	case errors.Is(err, domain.ErrTransportFailure):
		return c.String(http.StatusInternalServerError, "broadcast failed")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, "internal error")
	}
}
