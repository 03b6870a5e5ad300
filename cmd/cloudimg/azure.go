package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/release-engineering/cloudimg/internal/cloud"
	"github.com/release-engineering/cloudimg/internal/cloud/azure"
)

func newAzure() (*azure.Service, error) {
	var (
		svc *azure.Service
		err error
	)
	if cfg.Azure.ConnectionString != "" {
		svc, err = azure.FromConnectionString(cfg.Azure.ConnectionString)
	} else {
		svc, err = azure.NewService(cfg.Azure.StorageAccount, cfg.Azure.StorageAccessKey)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot create the Azure client: %w", err)
	}
	if cfg.Azure.UploadThreads > 0 {
		svc.UploadThreads = cfg.Azure.UploadThreads
	}
	return svc, nil
}

func azureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azure",
		Short: "Publish or delete VHD images",
	}
	cmd.AddCommand(azurePublishCmd(), azureDeleteCmd())
	return cmd
}

func azurePublishCmd() *cobra.Command {
	var (
		imagePath     string
		imageName     string
		objectName    string
		containerName string
		tags          []string
		emitSASURI    bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a disk image as a page blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			if containerName == "" {
				containerName = cfg.Azure.Container
			}

			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}

			if objectName == "" {
				objectName = azure.EnsureVHDExtension(imageName)
			}

			req, err := cloud.NewPublishRequest(cloud.PublishRequest{
				ImagePath:  imagePath,
				ImageName:  imageName,
				ObjectName: objectName,
				Container:  containerName,
				Tags:       tagMap,
			})
			if err != nil {
				return err
			}

			svc, err := newAzure()
			if err != nil {
				return err
			}

			image, err := svc.Publish(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", image.ID)

			if emitSASURI {
				uri, err := svc.BlobSASURI(req.Container, image.Name)
				if err != nil {
					return err
				}
				fmt.Printf("%s\n", uri)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "local path or HTTP(S) URL of the raw image, optionally .xz compressed")
	cmd.Flags().StringVarP(&imageName, "name", "n", "", "name of the published image")
	cmd.Flags().StringVar(&objectName, "object-name", "", "name of the blob, the image name with a .vhd suffix by default")
	cmd.Flags().StringVarP(&containerName, "container", "b", "", "target storage container, overrides the configuration")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "tag applied to the blob, key=value, repeatable")
	cmd.Flags().BoolVar(&emitSASURI, "sas-uri", false, "print a read-only SAS URI for the published blob")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func azureDeleteCmd() *cobra.Command {
	var (
		imageID       string
		containerName string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a published VHD blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			if containerName == "" {
				containerName = cfg.Azure.Container
			}

			req, err := cloud.NewDeleteRequest(cloud.DeleteRequest{
				ImageID:   imageID,
				Container: containerName,
			})
			if err != nil {
				return err
			}

			svc, err := newAzure()
			if err != nil {
				return err
			}

			result, err := svc.Delete(cmd.Context(), req)
			if err != nil {
				return err
			}
			printDeleteResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&imageID, "image-id", "", "name of the blob to delete")
	cmd.Flags().StringVarP(&containerName, "container", "b", "", "storage container holding the blob, overrides the configuration")
	_ = cmd.MarkFlagRequired("image-id")

	return cmd
}
