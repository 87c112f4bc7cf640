package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/JeseKi/fisco-autolight-client/internal/deployer"
	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/lifecycle"
	"github.com/JeseKi/fisco-autolight-client/internal/session"
	"github.com/JeseKi/fisco-autolight-client/internal/stream"
	"github.com/rs/zerolog/log"
	"gopkg.in/validator.v2"
)

// ActionOutput is returned by start and stop
type ActionOutput struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	State   lifecycle.State `json:"state"`
}

// SessionOutput describes the current deployment
type SessionOutput struct {
	session.Snapshot
	ConfiguredDir string          `json:"configured_dir"`
	Deploying     bool            `json:"deploying"`
	State         lifecycle.State `json:"state"`
}

// SDKCertInput for issuing a console sdk certificate
type SDKCertInput struct {
	Dir    string `json:"dir"`
	NodeID string `json:"node_id" validate:"max=64"`
}

// SDKCertOutput lists the written certificate files
type SDKCertOutput struct {
	Key  string `json:"key"`
	Cert string `json:"cert"`
	CA   string `json:"ca"`
}

// decodeOptional decodes a json body, an empty body leaves v untouched
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *App) deployHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	var input DeployInput
	if err := decodeOptional(r, &input); err != nil {
		log.Error().Err(err).Send()
		return nil, badRequest(errors.New("failed to read input data"))
	}

	if err := validator.Validate(input); err != nil {
		log.Error().Err(err).Send()
		return nil, badRequest(errors.New("invalid input data"))
	}

	var query DeployQuery
	if err := parseQueryParams(r, &query); err != nil {
		return nil, badRequest(err)
	}

	if query.Async {
		if a.deployer.Running() {
			return nil, kindError(errs.Wrap(errs.Lifecycle, deployer.ErrInProgress, ""))
		}

		go a.Deploy(context.WithoutCancel(r.Context()), input)
		return deployer.Result{Success: true, Message: "deployment started, follow the log stream"}, accepted()
	}

	result := a.Deploy(context.WithoutCancel(r.Context()), input)
	if !result.Success {
		return result, withStatus(statusOf(result.Kind))
	}

	return result, ok()
}

func (a *App) startHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	if err := a.StartNode(context.WithoutCancel(r.Context())); err != nil {
		return nil, kindError(err)
	}

	return ActionOutput{Success: true, Message: "node is running", State: a.manager.State()}, ok()
}

func (a *App) stopHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	if err := a.StopNode(context.WithoutCancel(r.Context())); err != nil {
		return nil, kindError(err)
	}

	return ActionOutput{Success: true, Message: "node is stopped", State: a.manager.State()}, ok()
}

func (a *App) statusHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	return a.Status(r.Context()), ok()
}

func (a *App) sessionHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	return SessionOutput{
		Snapshot:      a.session.Snapshot(),
		ConfiguredDir: a.config.NodeDir,
		Deploying:     a.deployer.Running(),
		State:         a.manager.State(),
	}, ok()
}

func (a *App) sdkCertHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	var input SDKCertInput
	if err := decodeOptional(r, &input); err != nil {
		log.Error().Err(err).Send()
		return nil, badRequest(errors.New("failed to read input data"))
	}

	if err := validator.Validate(input); err != nil {
		log.Error().Err(err).Send()
		return nil, badRequest(errors.New("invalid input data"))
	}

	bundle, err := a.IssueSDKCertificate(r.Context(), input.Dir, input.NodeID)
	if err != nil {
		return nil, kindError(err)
	}

	return SDKCertOutput{Key: bundle.KeyPath, Cert: bundle.CertPath, CA: bundle.CAPath}, ok()
}

func (a *App) logsHandler(r *http.Request, w http.ResponseWriter) (interface{}, Response) {
	var query LogsQuery
	if err := parseQueryParams(r, &query); err != nil {
		return nil, badRequest(err)
	}

	lines := []stream.Line{}
	for _, line := range a.bus.Recent() {
		if line.Seq <= query.Since || (query.Source != "" && line.Source != query.Source) {
			continue
		}
		lines = append(lines, line)
	}
	return lines, ok()
}
