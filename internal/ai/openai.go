package ai

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
)

type OpenAIClient struct{
    http *http.Client
    apiKey string
}

func NewOpenAIClient() *OpenAIClient {
    return &OpenAIClient{http: &http.Client{}, apiKey: os.Getenv("OPENAI_API_KEY")}
}
func (c *OpenAIClient) Name() string { return "openai" }

type openAIMessage struct {
    Role    string                   `json:"role"`
    Content []map[string]interface{} `json:"content"`
}

type openAIChatReq struct {
    Model       string          `json:"model"`
    Messages    []openAIMessage `json:"messages"`
    Temperature float64         `json:"temperature"`
    MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIChatResp struct {
    Choices []struct {
        Message struct {
            Content string `json:"content"`
        } `json:"message"`
    } `json:"choices"`
    Usage struct {
        PromptTokens     int `json:"prompt_tokens"`
        CompletionTokens int `json:"completion_tokens"`
    } `json:"usage"`
}

func (c *OpenAIClient) GenerateFilename(ctx context.Context, req Request) (Response, error) {
    if c.apiKey == "" {
        return Response{}, errors.New("missing OPENAI_API_KEY")
    }

    messages := []openAIMessage{{
        Role: "system",
        Content: []map[string]interface{}{
            {"type": "text", "text": systemPrompt},
        },
    }}

    // User message with image (if provided) and document text
    var userContent []map[string]interface{}

    if req.ImageBase64 != "" {
        imageURL := fmt.Sprintf("data:%s;base64,%s", req.ImageMIME, req.ImageBase64)
        userContent = append(userContent, map[string]interface{}{
            "type":      "image_url",
            "image_url": map[string]string{"url": imageURL},
        })
    }

    userPrompt := "Suggest a filename for this document."
    if req.Text != "" {
        userPrompt = fmt.Sprintf("DOCUMENT CONTENT:\n%s\n\nSuggest a filename for this document.", req.Text)
    }

    userContent = append(userContent, map[string]interface{}{
        "type": "text",
        "text": userPrompt,
    })

    messages = append(messages, openAIMessage{
        Role:    "user",
        Content: userContent,
    })

    payload := openAIChatReq{
        Model:       req.Model,
        Messages:    messages,
        Temperature: 0,
        MaxTokens:   64,
    }

    body, _ := json.Marshal(payload)
    httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
    httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
    httpReq.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return Response{}, err
    }
    defer resp.Body.Close()

    if resp.StatusCode == 429 {
        return Response{}, ErrRateLimited
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
        return Response{}, &HTTPError{StatusCode: resp.StatusCode, Body: string(b), Provider: c.Name()}
    }

    var r openAIChatResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        return Response{}, err
    }
    if len(r.Choices) == 0 {
        return Response{}, &ValidationError{Message: "no choices in response"}
    }

    name := strings.TrimSpace(r.Choices[0].Message.Content)
    if name == "" {
        return Response{}, &ValidationError{Message: "empty filename in response"}
    }

    return Response{
        Filename:  name,
        TokensIn:  r.Usage.PromptTokens,
        TokensOut: r.Usage.CompletionTokens,
    }, nil
}
