package main

import (
	"context"
	"log"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/infrastructure/config"
	"github.com/Skozial17/supportchat/infrastructure/di"
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

// Claims the API Gateway JWT authorizer forwards, mapped to the headers the
// router trusts when X-API-Gateway-Authorized is set.
var authorizerClaims = map[string]string{
	"sub":     "X-User-ID",
	"email":   "X-User-Email",
	"name":    "X-User-Name",
	"role":    "X-User-Role",
	"company": "X-User-Company",
}

func init() {
	coldStartTime = time.Now()
	log.Println("Lambda cold start initiated")

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiRouter, ok := container.Router.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	log.Printf("Lambda cold start completed in %v", time.Since(coldStartTime))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	applyAuthorizer(&req)

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		resp.Headers["X-Cold-Start-Duration"] = time.Since(coldStartTime).String()
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	fields := []zap.Field{
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Int("status_code", resp.StatusCode),
		zap.String("stage", req.RequestContext.Stage),
	}
	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response", append(fields, zap.String("body", resp.Body))...)
	} else {
		container.Logger.Info("Lambda response", fields...)
	}

	return resp, err
}

// applyAuthorizer copies identity claims validated by the API Gateway JWT
// authorizer into trusted headers. Client supplied X-User-* headers are
// always dropped first.
func applyAuthorizer(req *events.APIGatewayV2HTTPRequest) {
	for key := range req.Headers {
		canonical := textproto.CanonicalMIMEHeaderKey(key)
		if canonical == "X-Api-Gateway-Authorized" || strings.HasPrefix(canonical, "X-User-") {
			delete(req.Headers, key)
		}
	}

	authorizer := req.RequestContext.Authorizer
	if authorizer == nil || authorizer.JWT == nil || authorizer.JWT.Claims["sub"] == "" {
		return
	}
	for claim, header := range authorizerClaims {
		if v, ok := authorizer.JWT.Claims[claim]; ok {
			req.Headers[header] = v
		}
	}
	req.Headers["X-API-Gateway-Authorized"] = "true"
}

func main() {
	lambda.Start(Handler)
}
