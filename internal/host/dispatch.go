package host

import (
	"context"
	"fmt"
)

// dispatch maps a request onto a plugin operation.
func (h *Host) dispatch(ctx context.Context, req *Request) (interface{}, error) {
	p := h.plugin

	switch req.Method {
	case MethodStartBackend:
		return p.StartBackend(), nil

	case MethodStopBackend:
		return p.StopBackend(), nil

	case MethodGetBackendStatus:
		return p.GetBackendStatus(), nil

	case MethodProxyGet:
		var path string
		if err := req.arg(0, &path); err != nil {
			return nil, err
		}
		return p.ProxyGet(ctx, path), nil

	case MethodProxyPost:
		var path string
		var jsonData interface{}
		if err := req.arg(0, &path); err != nil {
			return nil, err
		}
		if err := req.arg(1, &jsonData); err != nil {
			return nil, err
		}
		body, err := req.bytesArg(2)
		if err != nil {
			return nil, err
		}
		return p.ProxyPost(ctx, path, jsonData, body), nil

	case MethodGetUploadSessions:
		return p.GetUploadSessions(), nil

	case MethodClearUploadSessions:
		return p.ClearUploadSessions(), nil

	case MethodGetNotifyServerStatus:
		return p.GetNotifyServerStatus(), nil

	case MethodGetBackendConfig:
		return p.GetBackendConfig(), nil

	case MethodSetBackendConfig:
		raw := map[string]interface{}{}
		if err := req.arg(0, &raw); err != nil {
			return nil, err
		}
		return p.SetBackendConfig(ctx, raw), nil

	case MethodGetReceiveHistory:
		return p.GetReceiveHistory(), nil

	case MethodClearReceiveHistory:
		return p.ClearReceiveHistory(), nil

	case MethodDeleteReceiveHistoryItem:
		var id string
		if err := req.arg(0, &id); err != nil {
			return nil, err
		}
		return p.DeleteReceiveHistoryItem(id), nil

	case MethodListFolderFiles:
		var folder string
		if err := req.arg(0, &folder); err != nil {
			return nil, err
		}
		return p.ListFolderFiles(folder), nil

	case MethodPrepareFolderUpload:
		var folder string
		if err := req.arg(0, &folder); err != nil {
			return nil, err
		}
		return p.PrepareFolderUpload(ctx, folder), nil

	case MethodFactoryReset:
		return p.FactoryReset(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method)
	}
}
