package uploads

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	config "github.com/Logan-Myn/dancehub-v3-sub000/configs"
)

// DocumentArchive keeps a copy of every identity document sent to Stripe so
// support staff can review what an owner uploaded.
type DocumentArchive struct {
	cld    *cloudinary.Cloudinary
	secret string
	folder string
	now    func() time.Time
}

func NewDocumentArchive(cfg config.CloudinaryConfig) (*DocumentArchive, error) {
	cld, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cloudinary url: %w", err)
	}
	secret, _ := parsed.User.Password()

	return &DocumentArchive{cld: cld, secret: secret, folder: cfg.Folder, now: time.Now}, nil
}

// Store uploads the document under folder/accountID and returns its secure URL.
func (a *DocumentArchive) Store(ctx context.Context, accountID, fileName string, r io.Reader) (string, error) {
	resp, err := a.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       a.folder + "/" + accountID,
		PublicID:     fmt.Sprintf("%d-%s", a.now().Unix(), fileName),
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
}

// SignUpload lets the browser upload a document for accountID directly.
func (a *DocumentArchive) SignUpload(accountID string) (UploadSignature, error) {
	folder := a.folder + "/" + accountID
	paramsToSign, err := api.StructToParams(uploader.UploadParams{Folder: folder})
	if err != nil {
		return UploadSignature{}, fmt.Errorf("failed to prepare signature params: %w", err)
	}

	timestamp := a.now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, a.secret)
	if err != nil {
		return UploadSignature{}, fmt.Errorf("failed to sign upload params: %w", err)
	}

	return UploadSignature{
		Signature: signature,
		Timestamp: timestamp,
		APIKey:    a.cld.Config.Cloud.APIKey,
		CloudName: a.cld.Config.Cloud.CloudName,
		Folder:    folder,
	}, nil
}
